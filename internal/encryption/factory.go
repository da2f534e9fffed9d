package encryption

import (
	"fmt"

	"medzk-go/internal/config"
	"medzk-go/internal/medzk"
)

// NewEncryptorFromConfig creates an Encryptor based on the config type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (medzk.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %s", cfg.Type)
	}
}
