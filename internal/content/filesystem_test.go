package content

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"medzk-go/internal/encryption"
	"medzk-go/internal/medzk"
)

func newFSStore(t *testing.T, clock *stubClock) *FileSystemStore {
	t.Helper()
	store, err := NewFileSystemStore(t.TempDir(), encryption.NewTestEncryptor(), clock)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	return store
}

func TestFileSystemStoreRoundTrip(t *testing.T) {
	clock := newStubClock()
	store := newFSStore(t, clock)

	ref := testRef(1)
	if err := store.Store(ref, strings.NewReader("payload"), "0xowner", false, 0); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := open(t, store, ref, "0xowner")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got != "payload" {
		t.Errorf("Open() = %q, want %q", got, "payload")
	}

	if _, err := open(t, store, ref, "0xother"); !errors.Is(err, medzk.ErrAccessDenied) {
		t.Errorf("Open() by stranger error = %v, want ErrAccessDenied", err)
	}
}

func TestFileSystemStoreLayout(t *testing.T) {
	clock := newStubClock()
	root := t.TempDir()
	store, err := NewFileSystemStore(root, encryption.NewTestEncryptor(), clock)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	ref := testRef(1)
	if err := store.Store(ref, strings.NewReader("payload"), "0xowner", false, 0); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	key := refKey(ref)
	if _, err := os.Stat(filepath.Join(root, "blobs", key)); err != nil {
		t.Errorf("blob file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "meta", key+".toml")); err != nil {
		t.Errorf("meta file missing: %v", err)
	}

	// No temp files are left behind by the atomic write.
	entries, err := os.ReadDir(filepath.Join(root, "blobs"))
	if err != nil {
		t.Fatalf("reading blobs dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("stale temp file %s left in blobs dir", e.Name())
		}
	}
}

func TestFileSystemStoreGrantPersists(t *testing.T) {
	clock := newStubClock()
	root := t.TempDir()
	store, err := NewFileSystemStore(root, encryption.NewTestEncryptor(), clock)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	ref := testRef(1)
	if err := store.Store(ref, strings.NewReader("payload"), "0xowner", false, 0); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := store.Grant(ref, "0xReader", medzk.AccessRead); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	// A second store over the same root sees the grant.
	reopened, err := NewFileSystemStore(root, encryption.NewTestEncryptor(), clock)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	if _, err := open(t, reopened, ref, "0xreader"); err != nil {
		t.Errorf("Open() by grantee after reopen error = %v", err)
	}
}

func TestFileSystemStoreExpiry(t *testing.T) {
	clock := newStubClock()
	store := newFSStore(t, clock)

	ref := testRef(1)
	if err := store.Store(ref, strings.NewReader("payload"), "0xowner", false, time.Hour); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	clock.Advance(2 * time.Hour)

	if _, err := open(t, store, ref, "0xowner"); !errors.Is(err, medzk.ErrContentExpired) {
		t.Errorf("Open() after expiry error = %v, want ErrContentExpired", err)
	}
}

func TestFileSystemStoreUnknownRef(t *testing.T) {
	store := newFSStore(t, newStubClock())

	if _, err := open(t, store, testRef(2), "0xowner"); !errors.Is(err, medzk.ErrUnknownContent) {
		t.Errorf("Open() on missing ref error = %v, want ErrUnknownContent", err)
	}
	if err := store.Grant(testRef(2), "0xreader", medzk.AccessRead); !errors.Is(err, medzk.ErrUnknownContent) {
		t.Errorf("Grant() on missing ref error = %v, want ErrUnknownContent", err)
	}
}
