package content

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
)

// meta describes a stored blob: who owns it, whether the payload was sealed
// before storage, when access lapses, and who else may read it. Grantee
// addresses are stored lowercased so lookups are case-insensitive.
type meta struct {
	Owner     string                       `toml:"owner"`
	Encrypted bool                         `toml:"encrypted"`
	ExpiresAt time.Time                    `toml:"expires_at"`
	Grants    map[string]medzk.AccessLevel `toml:"grants"`
}

func newMeta(owner string, encrypted bool, expiry time.Duration, now time.Time) *meta {
	m := &meta{
		Owner:     strings.ToLower(owner),
		Encrypted: encrypted,
		Grants:    make(map[string]medzk.AccessLevel),
	}
	if expiry > 0 {
		m.ExpiresAt = now.Add(expiry)
	}
	return m
}

// checkAccess enforces expiry before authorization. Expired content is
// unreadable even for its owner.
func (m *meta) checkAccess(grantee string, now time.Time) error {
	if !m.ExpiresAt.IsZero() && !now.Before(m.ExpiresAt) {
		return medzk.ErrContentExpired
	}
	g := strings.ToLower(grantee)
	if g == m.Owner {
		return nil
	}
	if m.Grants[g] >= medzk.AccessRead {
		return nil
	}
	return medzk.ErrAccessDenied
}

func (m *meta) grant(grantee string, level medzk.AccessLevel) {
	m.Grants[strings.ToLower(grantee)] = level
}

// refKey returns the storage key for a content ref.
func refKey(ref model.Ref) string {
	return hex.EncodeToString(ref[:])
}

// sealPayload runs the payload through the encryptor when sealing is
// requested, otherwise returns it unchanged.
func sealPayload(enc medzk.Encryptor, payload io.Reader, encrypted bool) (io.Reader, error) {
	if !encrypted {
		return payload, nil
	}
	var buf bytes.Buffer
	if err := enc.Encrypt(payload, &buf); err != nil {
		return nil, fmt.Errorf("sealing payload: %w", err)
	}
	return &buf, nil
}
