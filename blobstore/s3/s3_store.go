package s3

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/resdb/blobstore"
)

var _ blobstore.Store = (*Store)(nil)

// Store implements blobstore.Store for Amazon S3.
type Store struct {
	client Client
	bucket string
	prefix string
	cfg    UploadConfig
}

// NewStore creates a new S3 blob store with default upload settings.
// rootPrefix is prepended to all keys (e.g. "results/").
func NewStore(client Client, bucket, rootPrefix string) *Store {
	return NewStoreWithConfig(client, bucket, rootPrefix, DefaultUploadConfig())
}

// NewStoreWithConfig creates a new S3 blob store with explicit upload
// settings.
func NewStoreWithConfig(client Client, bucket, rootPrefix string, cfg UploadConfig) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		cfg:    cfg,
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open opens an existing blob for reading.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return openBlob(ctx, s.client, s.bucket, s.key(name))
}

// Put writes a blob in a single request. With EnableChecksum the upload
// carries a CRC32C that S3 validates server-side.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	if s.cfg.EnableChecksum {
		return putWithChecksum(ctx, s.client, s.bucket, key, data)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}

// Create opens a writable blob backed by a streaming multipart upload.
// The object becomes visible when Close returns without error.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	key := s.key(name)
	pr, pw := io.Pipe()

	blob := &baseWritableBlob{
		pw:   pw,
		done: make(chan error, 1),
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if s.cfg.EnableChecksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	uploader := newUploader(s.client, s.cfg)
	go func() {
		_, err := uploader.Upload(ctx, input)
		_ = pr.CloseWithError(err)
		blob.done <- err
	}()

	return blob, nil
}

// Delete removes a blob. S3 deletes are idempotent, so deleting an
// absent blob is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

// List returns all blob names with the given prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}
