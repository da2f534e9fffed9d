package content

import (
	"fmt"

	"medzk-go/internal/config"
	"medzk-go/internal/medzk"
)

// NewContentStoreFromConfig creates a ContentStore based on the config type.
func NewContentStoreFromConfig(cfg config.ContentConfig, enc medzk.Encryptor, clock medzk.Clock) (medzk.ContentStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(enc, clock), nil
	case "filesystem", "":
		if cfg.RootDir == "" {
			return nil, fmt.Errorf("filesystem content store requires root_dir to be set")
		}
		return NewFileSystemStore(cfg.RootDir, enc, clock)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 content store requires s3_bucket to be set")
		}
		return NewS3Store(cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, enc, clock)
	default:
		return nil, fmt.Errorf("unknown content store type: %s", cfg.Type)
	}
}
