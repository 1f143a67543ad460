package archive

import (
	"context"
	"fmt"

	"playground-go/internal/config"
)

// NewSinkFromConfig creates a Sink based on the archive config type.
func NewSinkFromConfig(ctx context.Context, cfg config.ArchiveConfig) (Sink, error) {
	switch cfg.Type {
	case "filesystem", "":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem archive requires root to be set")
		}
		sink, err := NewFileSystemSink(cfg.Root)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case "memory":
		return NewMemorySink(), nil
	case "s3":
		sink, err := NewS3SinkFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
