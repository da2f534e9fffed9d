package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/BurntSushi/toml"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
)

// S3Store is an S3-backed implementation of the ContentStore interface.
// Blobs live under <prefix>/blobs/<ref>, grant metadata under
// <prefix>/meta/<ref>.toml. Credentials come from the default AWS chain.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	enc      medzk.Encryptor
	clock    medzk.Clock
}

// NewS3Store creates a content store backed by the given bucket.
func NewS3Store(bucket, prefix, region string, enc medzk.Encryptor, clock medzk.Clock) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		enc:      enc,
		clock:    clock,
	}, nil
}

func (s *S3Store) blobKey(key string) string {
	return path.Join(s.prefix, "blobs", key)
}

func (s *S3Store) metaKey(key string) string {
	return path.Join(s.prefix, "meta", key+".toml")
}

// Store registers a blob under ref. Storing the same ref again replaces the
// blob and resets grants.
func (s *S3Store) Store(ref model.Ref, payload io.Reader, owner string, encrypted bool, expiry time.Duration) error {
	r, err := sealPayload(s.enc, payload, encrypted)
	if err != nil {
		return err
	}

	key := refKey(ref)
	if err := s.upload(s.blobKey(key), r); err != nil {
		return fmt.Errorf("uploading blob: %w", err)
	}
	return s.writeMeta(key, newMeta(owner, encrypted, expiry, s.clock.Now()))
}

// Grant records an access level for grantee on ref.
func (s *S3Store) Grant(ref model.Ref, grantee string, level medzk.AccessLevel) error {
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
func (s *S3Store) Open(ref model.Ref, grantee string, w io.Writer) error {
	key := refKey(ref)
	md, err := s.readMeta(key)
	if err != nil {
		return err
	}
	if err := md.checkAccess(grantee, s.clock.Now()); err != nil {
		return err
	}

	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    aws(s.blobKey(key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("%w: %s", medzk.ErrUnknownContent, key)
		}
		return fmt.Errorf("fetching blob: %w", err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	return nil
}

func (s *S3Store) readMeta(key string) (*meta, error) {
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    aws(s.metaKey(key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", medzk.ErrUnknownContent, key)
		}
		return nil, fmt.Errorf("fetching metadata: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
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

func (s *S3Store) writeMeta(key string, md *meta) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(md); err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := s.upload(s.metaKey(key), &buf); err != nil {
		return fmt.Errorf("uploading metadata: %w", err)
	}
	return nil
}

func (s *S3Store) upload(key string, r io.Reader) error {
	_, err := s.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   r,
	})
	return err
}

func isNoSuchKey(err error) bool {
	var notFound *types.NoSuchKey
	return errors.As(err, &notFound)
}

func aws(s string) *string {
	return &s
}

// Compile-time check that S3Store implements the ContentStore interface
var _ medzk.ContentStore = (*S3Store)(nil)
