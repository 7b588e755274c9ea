package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/resdb/blobstore"
)

// Client is the subset of the S3 API this package uses. *s3.Client
// satisfies it; tests substitute a mock. The multipart methods are
// required by the upload manager.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// baseBlob implements blobstore.Blob on top of S3 range reads. Both the
// standard and the Express store hand these out.
type baseBlob struct {
	client Client
	bucket string
	key    string
	size   int64
}

func (b *baseBlob) Close() error {
	return nil
}

func (b *baseBlob) Size() int64 {
	return b.size
}

// ReadAt reads len(p) bytes starting at offset off via a ranged GET.
// A read that runs past the end of the object returns the available
// bytes and io.EOF.
func (b *baseBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= b.size {
		return 0, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	end := off + int64(len(p)) - 1
	if end >= b.size {
		end = b.size - 1
	}
	want := end - off + 1

	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	// The ranged GET promised exactly want bytes; anything less is a
	// transport error, surfaced by ReadFull as ErrUnexpectedEOF.
	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, err
	}
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange streams length bytes starting at off. The range is clamped
// to the object size.
func (b *baseBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= b.size {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end := off + length - 1
	if end >= b.size {
		end = b.size - 1
	}

	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// openBlob stats the object so Size is known up front and absence maps
// to blobstore.ErrNotFound.
func openBlob(ctx context.Context, client Client, bucket, key string) (*baseBlob, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, blobstore.ErrNotFound
		}
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}

	return &baseBlob{
		client: client,
		bucket: bucket,
		key:    key,
		size:   *head.ContentLength,
	}, nil
}

// listObjects lists keys under fullPrefix, strips rootPrefix, and sorts.
func listObjects(ctx context.Context, client Client, bucket, fullPrefix, rootPrefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(fullPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			relPath := *obj.Key
			if len(rootPrefix) > 0 {
				if len(relPath) > len(rootPrefix) && relPath[:len(rootPrefix)] == rootPrefix {
					relPath = relPath[len(rootPrefix):]
					if len(relPath) > 0 && relPath[0] == '/' {
						relPath = relPath[1:]
					}
				}
			}
			keys = append(keys, relPath)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// baseWritableBlob streams writes into a background upload through a
// pipe. Close signals EOF and waits for the upload to commit.
type baseWritableBlob struct {
	pw     *io.PipeWriter
	done   chan error
	closed atomic.Bool
}

func (b *baseWritableBlob) Write(p []byte) (int, error) {
	if b.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return b.pw.Write(p)
}

func (b *baseWritableBlob) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return io.ErrClosedPipe
	}
	if err := b.pw.Close(); err != nil {
		return err
	}
	return <-b.done
}

// Sync is a no-op; the upload is only finalized when Close is called.
func (b *baseWritableBlob) Sync() error {
	return nil
}
