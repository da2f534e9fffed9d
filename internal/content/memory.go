package content

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
)

// MemoryStore is an in-memory implementation of the ContentStore interface.
// It keeps blobs and grant metadata in maps, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	enc   medzk.Encryptor
	clock medzk.Clock
	blobs map[string][]byte
	metas map[string]*meta
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory content store.
func NewMemoryStore(enc medzk.Encryptor, clock medzk.Clock) *MemoryStore {
	return &MemoryStore{
		enc:   enc,
		clock: clock,
		blobs: make(map[string][]byte),
		metas: make(map[string]*meta),
	}
}

// Store registers a blob under ref. Storing the same ref again replaces the
// blob and resets grants.
func (m *MemoryStore) Store(ref model.Ref, payload io.Reader, owner string, encrypted bool, expiry time.Duration) error {
	r, err := sealPayload(m.enc, payload, encrypted)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := refKey(ref)
	m.blobs[key] = data
	m.metas[key] = newMeta(owner, encrypted, expiry, m.clock.Now())
	return nil
}

// Grant records an access level for grantee on ref.
func (m *MemoryStore) Grant(ref model.Ref, grantee string, level medzk.AccessLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := m.metas[refKey(ref)]
	if !ok {
		return fmt.Errorf("%w: %s", medzk.ErrUnknownContent, refKey(ref))
	}
	md.grant(grantee, level)
	return nil
}

// Open streams the stored blob to w if grantee holds read access and the
// content has not expired. Sealed blobs are streamed sealed; decryption
// requires an unlocked key.
func (m *MemoryStore) Open(ref model.Ref, grantee string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := refKey(ref)
	md, ok := m.metas[key]
	if !ok {
		return fmt.Errorf("%w: %s", medzk.ErrUnknownContent, key)
	}
	if err := md.checkAccess(grantee, m.clock.Now()); err != nil {
		return err
	}

	if _, err := io.Copy(w, bytes.NewReader(m.blobs[key])); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	return nil
}

// Compile-time check that MemoryStore implements the ContentStore interface
var _ medzk.ContentStore = (*MemoryStore)(nil)
