// Package storage provides durable blob storage for uploaded and generated
// documents. The concrete cloud provider lives behind BlobStore; the local
// filesystem implementation serves single-node deployments and tests.
package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BlobStore persists raw document bytes under a type-prefixed path and
// returns a durable public locator for the stored blob.
type BlobStore interface {
	Upload(data []byte, pathPrefix, filename, contentType string) (string, error)
}

// LocalBlobStore implements BlobStore on the local filesystem, serving
// blobs through the HTTP server's static file route.
type LocalBlobStore struct {
	baseDir   string
	publicURL string
	logger    *zap.Logger
}

// NewLocalBlobStore creates a blob store rooted at baseDir. publicURL is
// the externally reachable prefix under which baseDir is served.
func NewLocalBlobStore(baseDir, publicURL string, logger *zap.Logger) (*LocalBlobStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalBlobStore{
		baseDir:   baseDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}, nil
}

// Upload writes the blob under pathPrefix with a random name that keeps
// the original extension, and returns its public locator.
func (s *LocalBlobStore) Upload(data []byte, pathPrefix, filename, contentType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	blobName := uuid.New().String() + ext
	relPath := path.Join(strings.Trim(pathPrefix, "/"), blobName)

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(relPath))
	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create blob subdirectory",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return "", fmt.Errorf("failed to create blob subdirectory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		s.logger.Error("Failed to write blob",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	s.logger.Debug("Blob stored",
		zap.String("path", relPath),
		zap.Int("size", len(data)),
		zap.String("content_type", contentType))

	return s.publicURL + "/" + relPath, nil
}

// validatePath ensures the target stays within baseDir.
func (s *LocalBlobStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes blob directory: %s", fullPath)
	}
	return nil
}

// BaseDir returns the filesystem root of the store, for the HTTP static
// file route.
func (s *LocalBlobStore) BaseDir() string {
	return s.baseDir
}
