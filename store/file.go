package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore writes one JSON file per slot. Every Save replaces the file
// atomically so a crash leaves either the old or the new blob on disk.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(slot string) (string, error) {
	if slot == "" || strings.ContainsAny(slot, `/\`) || strings.HasPrefix(slot, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return filepath.Join(s.dir, slot+".json"), nil
}

func (s *FileStore) Load(_ context.Context, slot string) ([]byte, error) {
	p, err := s.path(slot)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", slot, err)
	}
	return data, nil
}

func (s *FileStore) Save(_ context.Context, slot string, data []byte) error {
	p, err := s.path(slot)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, slot+"-*.tmp")
	if err != nil {
		return fmt.Errorf("save slot %s: %w", slot, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save slot %s: %w", slot, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save slot %s: %w", slot, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save slot %s: %w", slot, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("save slot %s: %w", slot, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
