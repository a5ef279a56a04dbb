package keys

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	defaultS3LockTTL   = 30 * time.Second
	defaultS3LockRetry = 200 * time.Millisecond
	s3ReleaseTimeout   = 5 * time.Second
)

// S3API is the subset of *s3.Client the backend uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Backend keeps key material as objects in a bucket. The lock is an object
// created with If-None-Match: *, which S3 accepts for exactly one writer.
// A lock older than its TTL is considered abandoned and removed.
type S3Backend struct {
	api        S3API
	bucket     string
	prefix     string
	lockTTL    time.Duration
	retryDelay time.Duration
	now        func() time.Time
}

type s3Lock struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewS3Backend(api S3API, bucket, prefix string) *S3Backend {
	return &S3Backend{
		api:        api,
		bucket:     bucket,
		prefix:     prefix,
		lockTTL:    defaultS3LockTTL,
		retryDelay: defaultS3LockRetry,
		now:        time.Now,
	}
}

func (b *S3Backend) key(name string) *string {
	return aws.String(b.prefix + name)
}

func (b *S3Backend) Get(ctx context.Context, name string) ([]byte, error) {
	data, _, err := b.get(ctx, name)
	return data, err
}

func (b *S3Backend) get(ctx context.Context, name string) ([]byte, *string, error) {
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    b.key(name),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil, fmt.Errorf("%w: %s", common.ErrKeyNotFound, name)
		}
		return nil, nil, fmt.Errorf("s3 get %s: %w", name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("s3 read %s: %w", name, err)
	}
	return data, out.ETag, nil
}

func (b *S3Backend) Put(ctx context.Context, name string, data []byte) error {
	_, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    b.key(name),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", name, err)
	}
	return nil
}

func (b *S3Backend) Lock(ctx context.Context, name string) (func() error, error) {
	lockName := name + ".lock"
	owner := uuid.NewString()
	var etag *string

	err := retry.Do(ctx, retry.NewConstant(b.retryDelay), func(ctx context.Context) error {
		body, err := json.Marshal(s3Lock{Owner: owner, ExpiresAt: b.now().Add(b.lockTTL)})
		if err != nil {
			return err
		}
		out, err := b.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(b.bucket),
			Key:         b.key(lockName),
			Body:        bytes.NewReader(body),
			IfNoneMatch: aws.String("*"),
		})
		if err == nil {
			etag = out.ETag
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if !isS3PreconditionFailed(err) {
			return retry.RetryableError(err)
		}
		b.breakStaleLock(ctx, lockName)
		return retry.RetryableError(errLockHeld)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", common.ErrKeyLockTimeout, name, err)
		}
		return nil, fmt.Errorf("s3 lock %s: %w", name, err)
	}

	unlock := func() error {
		rctx, cancel := context.WithTimeout(context.Background(), s3ReleaseTimeout)
		defer cancel()
		_, err := b.api.DeleteObject(rctx, &s3.DeleteObjectInput{
			Bucket:  aws.String(b.bucket),
			Key:     b.key(lockName),
			IfMatch: etag,
		})
		if err != nil {
			return fmt.Errorf("s3 unlock %s: %w", name, err)
		}
		return nil
	}
	return unlock, nil
}

// breakStaleLock removes a lock whose holder let it expire. The delete is
// conditional on the ETag we read, so a fresh lock taken in between survives.
func (b *S3Backend) breakStaleLock(ctx context.Context, lockName string) {
	data, etag, err := b.get(ctx, lockName)
	if err != nil {
		return
	}
	var l s3Lock
	if err := json.Unmarshal(data, &l); err == nil && b.now().Before(l.ExpiresAt) {
		return
	}
	_, _ = b.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:  aws.String(b.bucket),
		Key:     b.key(lockName),
		IfMatch: etag,
	})
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isS3PreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}
