package archive

import (
	"context"
	"fmt"
)

// Config mirrors internal/config.ArchiveConfig; archive does not import
// config directly to avoid a dependency cycle with packages config itself
// might grow to depend on.
type Config struct {
	Backend string // none, fs, s3
	Path    string
	Bucket  string
	Region  string
}

// Open dispatches to the configured backend, matching credstore.Open's
// backend-selection shape.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return Noop(), nil
	case "fs":
		return NewFSStore(FSConfig{BasePath: cfg.Path})
	case "s3":
		return NewS3Store(ctx, S3Config{Region: cfg.Region, Bucket: cfg.Bucket})
	default:
		return nil, fmt.Errorf("archive: unknown backend %q", cfg.Backend)
	}
}
