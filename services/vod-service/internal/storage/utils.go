package storage

import (
	"errors"
	"path"
	"strings"
)

// ErrObjectTooLarge is returned when an upload exceeds the size the gateway accepts
var ErrObjectTooLarge = errors.New("object exceeds maximum size")

// ErrInvalidKey is returned for keys that would escape the storage root
var ErrInvalidKey = errors.New("invalid object key")

// cleanKey validates an object key and returns it in canonical form
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || cleaned != key {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// sizeWriter tracks the total number of bytes written through it
type sizeWriter struct {
	size int64
}

// Write implements io.Writer
func (sw *sizeWriter) Write(p []byte) (int, error) {
	n := len(p)
	sw.size += int64(n)
	return n, nil
}

// Size returns the total number of bytes written
func (sw *sizeWriter) Size() int64 {
	return sw.size
}
