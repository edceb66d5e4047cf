package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// purgeConcurrency bounds parallel deletes of one prefix
const purgeConcurrency = 8

// gcsGateway implements the blob gateway on a Google Cloud Storage bucket
type gcsGateway struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewGCSGateway creates a gateway on bucket. credentialsFile may be empty to use
// application default credentials.
func NewGCSGateway(ctx context.Context, bucket, credentialsFile string, logger *zap.Logger) (*gcsGateway, error) {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	logger.Info("object storage initialized", zap.String("driver", "gcs"), zap.String("bucket", bucket))

	return &gcsGateway{
		client: client,
		bucket: bucket,
		logger: logger,
	}, nil
}

// PresignPut returns a V4 signed URL that accepts a single PUT of key with the given content type
func (g *gcsGateway) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	url, err := g.client.Bucket(g.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     expiresAt,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign upload url for %q: %w", key, err)
	}
	return url, expiresAt, nil
}

// PresignGet returns a V4 signed URL that allows reading key until the TTL elapses
func (g *gcsGateway) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	url, err := g.client.Bucket(g.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: expiresAt,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign download url for %q: %w", key, err)
	}
	return url, expiresAt, nil
}

// Stat returns the attributes of key or ErrObjectNotFound
func (g *gcsGateway) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	attrs, err := g.client.Bucket(g.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", key, err)
	}

	return objectInfoFromAttrs(attrs), nil
}

// Open returns a reader for key. The caller must close it.
func (g *gcsGateway) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open %q: %w", key, err)
	}

	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

// Delete removes key. A missing object is not an error.
func (g *gcsGateway) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every object under prefix and returns how many were deleted
func (g *gcsGateway) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := g.listKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(purgeConcurrency)
	for _, key := range keys {
		eg.Go(func() error {
			return g.Delete(egCtx, key)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, fmt.Errorf("failed to purge prefix %q: %w", prefix, err)
	}

	g.logger.Debug("purged prefix", zap.String("prefix", prefix), zap.Int("objects", len(keys)))
	return len(keys), nil
}

// Close releases the underlying client
func (g *gcsGateway) Close() error {
	return g.client.Close()
}

func (g *gcsGateway) listKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	keys := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list prefix %q: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func objectInfoFromAttrs(attrs *storage.ObjectAttrs) *ObjectInfo {
	return &ObjectInfo{
		Key:         attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated,
	}
}
