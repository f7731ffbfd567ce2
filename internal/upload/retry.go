package upload

import (
	"context"
	"io"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ensure RetryUploader implements Uploader interface.
var _ Uploader = (*RetryUploader)(nil)

// Wraps every call of another uploader in a backoff loop. Each call gets a
// fresh backoff from `backoff`.
type RetryUploader struct {
	uploader Uploader
	backoff  func() retry.Backoff
}

func NewRetryUploaderBackoff(uploader Uploader, backoff func() retry.Backoff) *RetryUploader {
	return &RetryUploader{
		uploader: uploader,
		backoff:  backoff,
	}
}

// Calls `fn` until it succeeds, returns a non retryable error or the backoff
// gives up. The last error is returned in that case.
func withRetry[T any](
	ctx context.Context,
	backoff retry.Backoff,
	operation string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	ctx, span := tracer.Start(ctx, "RetryUploader."+operation)
	defer span.End()

	attempts := 0
	var result T
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		span.AddEvent("attempt", trace.WithAttributes(attribute.Int("attempt", attempts)))

		var err error
		result, err = fn(ctx)
		return err
	})

	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, operation+" failed")
		var zero T
		return zero, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, operation+" succeeded")
	return result, nil
}

func (r *RetryUploader) Exists(ctx context.Context, key string) (bool, error) {
	return withRetry(ctx, r.backoff(), "Exists", func(ctx context.Context) (bool, error) {
		exists, err := r.uploader.Exists(ctx, key)
		return exists, retry.RetryableError(err)
	})
}

func (r *RetryUploader) StoreIdentifier(ctx context.Context) (string, error) {
	return withRetry(ctx, r.backoff(), "StoreIdentifier", func(ctx context.Context) (string, error) {
		ident, err := r.uploader.StoreIdentifier(ctx)
		return ident, retry.RetryableError(err)
	})
}

// `reader` is rewound before every attempt
func (r *RetryUploader) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	key string,
) error {
	_, err := withRetry(ctx, r.backoff(), "Upload", func(ctx context.Context) (struct{}, error) {
		if _, err := reader.Seek(0, io.SeekStart); err != nil {
			// the reader is unusable, another attempt cannot help
			return struct{}{}, err
		}
		return struct{}{}, retry.RetryableError(r.uploader.Upload(ctx, reader, length, key))
	})
	return err
}

func (r *RetryUploader) PresignedDownloadURL(
	ctx context.Context,
	key string,
	filename string,
	duration time.Duration,
) (string, error) {
	return withRetry(ctx, r.backoff(), "PresignedDownloadURL", func(ctx context.Context) (string, error) {
		presigned, err := r.uploader.PresignedDownloadURL(ctx, key, filename, duration)
		return presigned, retry.RetryableError(err)
	})
}
