package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FSStore writes each domain's XML to <basePath>/<domain>.xml using an
// atomic-rename write (write to a .tmp sibling, then os.Rename) so a
// crash mid-write never leaves a half-written snapshot in place of a good
// one.
type FSStore struct {
	mu       sync.Mutex
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
}

// FSConfig configures an FSStore.
type FSConfig struct {
	BasePath string
	DirMode  os.FileMode
	FileMode os.FileMode
}

// NewFSStore creates the base directory if it doesn't exist and returns a
// Store that writes snapshots under it.
func NewFSStore(cfg FSConfig) (*FSStore, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("archive: fs base path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0o750
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o640
	}
	if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
		return nil, fmt.Errorf("archive: create base path: %w", err)
	}
	return &FSStore{basePath: cfg.BasePath, dirMode: cfg.DirMode, fileMode: cfg.FileMode}, nil
}

func (s *FSStore) path(domain string) string {
	return filepath.Join(s.basePath, domain+".xml")
}

// Put atomically writes xml for domain: write to a .tmp sibling, fsync,
// then rename over the final path.
func (s *FSStore) Put(_ context.Context, domain string, xml []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	final := s.path(domain)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.fileMode)
	if err != nil {
		return fmt.Errorf("archive: open temp file: %w", err)
	}
	if _, err := f.Write(xml); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("archive: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("archive: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("archive: close temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("archive: rename temp file: %w", err)
	}
	return nil
}

func (s *FSStore) Close() error { return nil }

var _ Store = (*FSStore)(nil)
