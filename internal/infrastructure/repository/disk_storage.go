package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fasttransfer/relay/internal/domain/entities"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// DiskStorage keeps one directory per transfer under a base path.
// Saved names are derived from the upload time plus the sanitized
// original name, never from user input alone.
type DiskStorage struct {
	basePath string
}

// NewDiskStorage creates the storage root if needed
func NewDiskStorage(basePath string) (*DiskStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, &entities.StorageError{Op: "init", Err: err}
	}
	return &DiskStorage{basePath: basePath}, nil
}

func (s *DiskStorage) Allocate(_ context.Context, transferID string) error {
	if err := os.MkdirAll(s.transferDir(transferID), 0755); err != nil {
		return &entities.StorageError{Op: "allocate", Err: err}
	}
	return nil
}

func (s *DiskStorage) Store(_ context.Context, transferID string, reader io.Reader, originalName string, maxSize int64) (string, int64, error) {
	dir := s.transferDir(transferID)

	tempFile, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", 0, &entities.StorageError{Op: "store", Err: err}
	}
	defer os.Remove(tempFile.Name())

	src := reader
	if maxSize > 0 {
		// One extra byte so an exactly-at-limit file still passes
		src = io.LimitReader(reader, maxSize+1)
	}

	written, err := io.Copy(tempFile, src)
	if err != nil {
		tempFile.Close()
		return "", 0, &entities.StorageError{Op: "store", Err: err}
	}
	tempFile.Close()

	if maxSize > 0 && written > maxSize {
		return "", 0, entities.NewValidationError("file %q exceeds the %d byte limit", originalName, maxSize)
	}

	base := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeName(originalName))
	savedName := base
	for attempt := 1; ; attempt++ {
		target := filepath.Join(dir, savedName)
		if _, err := os.Stat(target); os.IsNotExist(err) {
			if err := os.Rename(tempFile.Name(), target); err != nil {
				return "", 0, &entities.StorageError{Op: "store", Err: err}
			}
			return savedName, written, nil
		}
		savedName = fmt.Sprintf("%s.%d", base, attempt)
	}
}

func (s *DiskStorage) ListFiles(_ context.Context, transferID string) ([]string, error) {
	dirEntries, err := os.ReadDir(s.transferDir(transferID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &entities.StorageError{Op: "list", Err: err}
	}

	names := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (s *DiskStorage) Open(_ context.Context, transferID, savedName string) (io.ReadCloser, error) {
	// Saved names are always flat; anything else escapes the
	// transfer's directory
	if savedName == "" || savedName != filepath.Base(savedName) {
		return nil, entities.ErrFileNotFound
	}

	f, err := os.Open(filepath.Join(s.transferDir(transferID), savedName))
	if os.IsNotExist(err) {
		return nil, entities.ErrFileNotFound
	}
	if err != nil {
		return nil, &entities.StorageError{Op: "open", Err: err}
	}
	return f, nil
}

func (s *DiskStorage) Remove(_ context.Context, transferID string) error {
	// RemoveAll on an absent directory is a no-op, which keeps
	// repeated cleanup passes over the same transfer safe
	if err := os.RemoveAll(s.transferDir(transferID)); err != nil {
		return &entities.StorageError{Op: "remove", Err: err}
	}
	return nil
}

func (s *DiskStorage) transferDir(transferID string) string {
	return filepath.Join(s.basePath, transferID)
}

// sanitizeName strips path separators and disallowed characters from a
// user-supplied filename before it is used in a stored name
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	if strings.Trim(name, "._") == "" {
		return "file"
	}
	return name
}
