// Package blob stores uploaded files under a root directory, keyed by
// generated IDs rather than client-supplied names.
package blob

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lectoria/internal/db"
)

var (
	ErrFileTooLarge   = errors.New("blob file too large")
	ErrDisallowedType = errors.New("disallowed blob mime type")
	ErrInvalidPath    = errors.New("invalid blob path")
)

type StoredImage struct {
	ID          string
	StoragePath string
	MimeType    string
	SizeBytes   int64
	CreatedAt   time.Time
}

type Service struct {
	rootDir        string
	maxUploadBytes int64
}

func NewService(rootDir string, maxUploadBytes int64) (*Service, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("upload root directory is required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be > 0")
	}

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload root directory: %w", err)
	}

	return &Service{rootDir: rootDir, maxUploadBytes: maxUploadBytes}, nil
}

func (s *Service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// SaveAvatar writes an uploaded avatar image to disk. The content is sniffed
// before anything touches the final path: only raster image types are
// accepted, so an HTML or SVG payload can never end up served from here.
func (s *Service) SaveAvatar(src io.Reader) (*StoredImage, error) {
	id, err := db.GenerateID("img")
	if err != nil {
		return nil, fmt.Errorf("generating image ID: %w", err)
	}

	relPath := avatarRelativePath(id)
	absPath, err := s.resolveStoragePath(relPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating avatar directory: %w", err)
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(src, sniff)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	sniff = sniff[:n]

	mimeType := detectMimeType(sniff)
	if !isAllowedImageType(mimeType) {
		return nil, ErrDisallowedType
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(absPath), id+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	full := io.MultiReader(bytes.NewReader(sniff), src)
	written, err := io.Copy(tmpFile, io.LimitReader(full, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("writing avatar file: %w", err)
	}
	if written > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return nil, fmt.Errorf("finalizing avatar file: %w", err)
	}

	return &StoredImage{
		ID:          id,
		StoragePath: relPath,
		MimeType:    mimeType,
		SizeBytes:   written,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *Service) Open(storagePath string) (*os.File, error) {
	absPath, err := s.resolveStoragePath(storagePath)
	if err != nil {
		return nil, err
	}
	return os.Open(absPath)
}

func (s *Service) Delete(storagePath string) error {
	absPath, err := s.resolveStoragePath(storagePath)
	if err != nil {
		return err
	}

	err = os.Remove(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting stored file: %w", err)
	}
	return nil
}

func (s *Service) resolveStoragePath(storagePath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storagePath))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.rootDir, clean), nil
}

func avatarRelativePath(id string) string {
	random := strings.TrimPrefix(id, "img_")
	prefix := "xx"
	if len(random) >= 2 {
		prefix = random[:2]
	}
	return filepath.ToSlash(filepath.Join("avatar", prefix, id))
}

func detectMimeType(sniff []byte) string {
	if len(sniff) == 0 {
		return "application/octet-stream"
	}
	contentType := http.DetectContentType(sniff)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return strings.TrimSpace(contentType)
}

func isAllowedImageType(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
