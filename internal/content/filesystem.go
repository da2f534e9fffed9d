package content

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
)

// FileSystemStore is a filesystem-based implementation of the ContentStore
// interface. It stores blobs and grant metadata as files:
//
//	<root>/
//	  blobs/
//	    <ref>        (content files, named by hex ref)
//	  meta/
//	    <ref>.toml   (owner, grants, expiry)
type FileSystemStore struct {
	root    string
	blobDir string
	metaDir string
	enc     medzk.Encryptor
	clock   medzk.Clock
}

// NewFileSystemStore creates a content store rooted at the given path.
func NewFileSystemStore(root string, enc medzk.Encryptor, clock medzk.Clock) (*FileSystemStore, error) {
	blobDir := filepath.Join(root, "blobs")
	metaDir := filepath.Join(root, "meta")

	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, fmt.Errorf("creating meta directory: %w", err)
	}

	return &FileSystemStore{
		root:    root,
		blobDir: blobDir,
		metaDir: metaDir,
		enc:     enc,
		clock:   clock,
	}, nil
}

func (s *FileSystemStore) blobPath(key string) string {
	return filepath.Join(s.blobDir, key)
}

func (s *FileSystemStore) metaPath(key string) string {
	return filepath.Join(s.metaDir, key+".toml")
}

// Store registers a blob under ref. Storing the same ref again replaces the
// blob and resets grants.
func (s *FileSystemStore) Store(ref model.Ref, payload io.Reader, owner string, encrypted bool, expiry time.Duration) error {
	r, err := sealPayload(s.enc, payload, encrypted)
	if err != nil {
		return err
	}

	key := refKey(ref)
	if err := s.writeFile(s.blobPath(key), r); err != nil {
		return err
	}
	return s.writeMeta(key, newMeta(owner, encrypted, expiry, s.clock.Now()))
}

// Grant records an access level for grantee on ref.
func (s *FileSystemStore) Grant(ref model.Ref, grantee string, level medzk.AccessLevel) error {
	key := refKey(ref)
	md, err := s.readMeta(key)
	if err != nil {
		return err
	}
	md.grant(grantee, level)
	return s.writeMeta(key, md)
}

// Open streams the stored blob to w if grantee holds read access and the
// content has not expired.
func (s *FileSystemStore) Open(ref model.Ref, grantee string, w io.Writer) error {
	key := refKey(ref)
	md, err := s.readMeta(key)
	if err != nil {
		return err
	}
	if err := md.checkAccess(grantee, s.clock.Now()); err != nil {
		return err
	}

	f, err := os.Open(s.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", medzk.ErrUnknownContent, key)
		}
		return fmt.Errorf("opening blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	return nil
}

func (s *FileSystemStore) readMeta(key string) (*meta, error) {
	data, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", medzk.ErrUnknownContent, key)
		}
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var md meta
	if err := toml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	if md.Grants == nil {
		md.Grants = make(map[string]medzk.AccessLevel)
	}
	return &md, nil
}

func (s *FileSystemStore) writeMeta(key string, md *meta) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(md); err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return s.writeFile(s.metaPath(key), &buf)
}

// writeFile writes data from r to the specified path using atomic write
// (temp file + rename).
func (s *FileSystemStore) writeFile(destPath string, r io.Reader) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemStore implements the ContentStore interface
var _ medzk.ContentStore = (*FileSystemStore)(nil)
