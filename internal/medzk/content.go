package medzk

import (
	"io"
	"time"

	"medzk-go/internal/model"
)

// AccessLevel ranks what a grantee may do with a stored content blob.
type AccessLevel uint8

const (
	AccessNone  AccessLevel = 0
	AccessRead  AccessLevel = 1
	AccessWrite AccessLevel = 2
)

// ContentStore is the encrypted-content collaborator. The core writes blobs
// and requests access grants; it never reads content back. Expiry is a
// passive check applied when a grantee opens the content, not a timer.
type ContentStore interface {
	// Store registers a blob under an opaque ref. When encrypted is true
	// the payload is sealed before it reaches the backend. expiry of zero
	// means the content never expires. The owner implicitly holds write
	// access.
	Store(ref model.Ref, payload io.Reader, owner string, encrypted bool, expiry time.Duration) error

	// Grant records that grantee may access ref at the given level.
	// Granting on unknown content returns ErrUnknownContent.
	Grant(ref model.Ref, grantee string, level AccessLevel) error

	// Open streams the blob to w if grantee holds at least read access and
	// the content has not expired. Fails with ErrAccessDenied or
	// ErrContentExpired otherwise.
	Open(ref model.Ref, grantee string, w io.Writer) error
}
