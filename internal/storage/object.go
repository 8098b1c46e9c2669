// Package storage abstracts the object store that holds vision-image
// bytes. The lifecycle controller only records the opaque reference a Put
// returns; it never interprets it.
package storage

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ObjectStore accepts raw bytes plus a content type and returns a
// retrievable reference.
type ObjectStore interface {
	Put(key string, contentType string, data []byte) (string, error)
	Get(ref string) ([]byte, error)
	Delete(ref string) error
}

// DiskStore is an ObjectStore backed by a local directory. Deployments
// fronted by a CDN or cloud bucket swap in their own implementation; the
// core is indifferent.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Put writes the object under a random name derived from the key prefix
// and content type, and returns the reference relative to the root.
func (s *DiskStore) Put(key string, contentType string, data []byte) (string, error) {
	ext := extensionFor(contentType)
	ref := filepath.Join(key, uuid.NewString()+ext)

	path := filepath.Join(s.root, ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write object: %w", err)
	}

	return ref, nil
}

// Get reads an object back by reference.
func (s *DiskStore) Get(ref string) ([]byte, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Delete removes an object. Missing objects are not an error.
func (s *DiskStore) Delete(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// resolve joins the reference under the root, rejecting path escapes.
func (s *DiskStore) resolve(ref string) (string, error) {
	clean := filepath.Clean(ref)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object reference: %s", ref)
	}
	return filepath.Join(s.root, clean), nil
}

// extensionFor maps a content type to a file extension, defaulting to .bin.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
