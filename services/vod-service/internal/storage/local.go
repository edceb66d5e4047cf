package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// localGateway implements the blob gateway on the local filesystem.
// Its pre-signed URLs point at the service's own /blobs endpoints.
type localGateway struct {
	basePath string
	baseURL  string
	signer   *urlSigner
	now      func() time.Time
}

// NewLocalGateway creates a gateway rooted at basePath. publicBaseURL is the externally
// reachable address of the blob endpoints, e.g. http://localhost:8080/api/v1/blobs.
func NewLocalGateway(basePath, publicBaseURL, secret string) *localGateway {
	return &localGateway{
		basePath: basePath,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		signer:   newURLSigner(secret),
		now:      time.Now,
	}
}

// generatePath maps an object key onto the filesystem
func (s *localGateway) generatePath(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleaned)), nil
}

// PresignPut returns a signed URL accepting one PUT of key
func (s *localGateway) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error) {
	return s.presign(http.MethodPut, key, ttl)
}

// PresignGet returns a signed URL allowing reads of key
func (s *localGateway) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	return s.presign(http.MethodGet, key, ttl)
}

func (s *localGateway) presign(method, key string, ttl time.Duration) (string, time.Time, error) {
	if _, err := cleanKey(key); err != nil {
		return "", time.Time{}, err
	}

	expiresAt := s.now().Add(ttl)
	token, err := s.signer.sign(method, key, expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}

	return s.baseURL + "/" + escapeKey(key) + "?token=" + url.QueryEscape(token), expiresAt, nil
}

// Verify checks that token authorizes method on key right now
func (s *localGateway) Verify(method, key, token string) error {
	if token == "" {
		return ErrInvalidSignature
	}
	return s.signer.verify(token, method, key, s.now())
}

// Put stores the body under key, rejecting bodies larger than maxSize.
// The object becomes visible only once fully written.
func (s *localGateway) Put(key string, body io.Reader, maxSize int64) (int64, error) {
	path, err := s.generatePath(key)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	sw := &sizeWriter{}
	_, err = io.Copy(io.MultiWriter(tmp, sw), io.LimitReader(body, maxSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write object: %w", err)
	}
	if sw.Size() > maxSize {
		return 0, ErrObjectTooLarge
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to commit object: %w", err)
	}
	return sw.Size(), nil
}

// Open opens key for reading
func (s *localGateway) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.OpenFile(key)
}

// OpenFile opens key and returns *os.File so callers can serve ranges
func (s *localGateway) OpenFile(key string) (*os.File, error) {
	path, err := s.generatePath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", key, err)
	}
	return f, nil
}

// Stat returns the attributes of key or ErrObjectNotFound
func (s *localGateway) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	f, err := s.OpenFile(key)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", key, err)
	}
	if fi.IsDir() {
		return nil, ErrObjectNotFound
	}

	contentType, err := DetectContentType(f)
	if err != nil {
		return nil, err
	}

	return &ObjectInfo{
		Key:         key,
		Size:        fi.Size(),
		ContentType: contentType,
		Updated:     fi.ModTime(),
	}, nil
}

// Delete removes key. A missing object is not an error.
func (s *localGateway) Delete(ctx context.Context, key string) error {
	path, err := s.generatePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every object under a directory-style prefix ("media/{id}/")
func (s *localGateway) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	dir, err := s.generatePath(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return 0, err
	}

	count := 0
	err = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to walk prefix %q: %w", prefix, err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("failed to purge prefix %q: %w", prefix, err)
	}
	return count, nil
}

// Close is a no-op for the filesystem gateway
func (s *localGateway) Close() error {
	return nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
