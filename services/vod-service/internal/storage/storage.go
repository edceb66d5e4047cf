// Package storage provides blob store gateways for original uploads, transcode outputs
// and assignment submissions. Clients never stream bytes through the API: they receive
// pre-signed PUT and GET URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ErrObjectNotFound is returned when a key does not exist in the blob store
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Updated     time.Time
}

// sniffLength is how many leading bytes Sniff reads for content detection
const sniffLength = 3072

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

// Close closes the reader and releases its context
func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

// DetectContentType reads the head of an object and returns the mime type its bytes look like
func DetectContentType(r io.Reader) (string, error) {
	mt, err := mimetype.DetectReader(io.LimitReader(r, sniffLength))
	if err != nil {
		return "", fmt.Errorf("failed to detect content type: %w", err)
	}
	return mt.String(), nil
}
