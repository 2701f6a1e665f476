package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/logger"
)

// FileStore keeps the document as pretty-printed JSON in a local file.
// Writes replace the file through a temp file and rename.
type FileStore struct {
	path     string
	userName string
}

// NewFileStore creates a FileStore at path. userName seeds a new document.
func NewFileStore(path, userName string) *FileStore {
	return &FileStore{path: path, userName: userName}
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (*domain.Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		log := logger.FromContext(ctx)
		log.Debug().Str("path", s.path).Msg("No bills document yet, starting fresh")
		return domain.NewDocument(s.userName), nil
	}
	if err != nil {
		return nil, fmt.Errorf("FileStore.Load: %w", err)
	}

	doc, err := decodeDocument(data, s.userName)
	if err != nil {
		return nil, fmt.Errorf("FileStore.Load: %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) Save(ctx context.Context, doc *domain.Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("FileStore.Save: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("FileStore.Save: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".bills-*.json")
	if err != nil {
		return fmt.Errorf("FileStore.Save: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("FileStore.Save: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("FileStore.Save: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("FileStore.Save: rename: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("path", s.path).
		Int("bills", len(doc.Bills)).
		Int("transactions", len(doc.Transactions)).
		Msg("Saved bills document")
	return nil
}
