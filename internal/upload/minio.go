package upload

import (
	"context"
	"io"
	"mime"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ensure MinioUploader implements Uploader interface.
var _ Uploader = (*MinioUploader)(nil)

type MinioOptions struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Secure          bool
}

// S3 compatible object store, used for submissions and the prediction archive
type MinioUploader struct {
	client *minio.Client
	bucket string
}

func NewMinioUploader(opts MinioOptions) (*MinioUploader, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, err
	}

	return NewMinioUploaderFromClient(client, opts.Bucket), nil
}

func NewMinioUploaderFromClient(client *minio.Client, bucket string) *MinioUploader {
	return &MinioUploader{
		client: client,
		bucket: bucket,
	}
}

// Creates the bucket when it is missing
func (u *MinioUploader) EnsureBucket(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "MinioUploader.EnsureBucket", trace.WithAttributes(
		attribute.String("bucket", u.bucket),
	))
	defer span.End()

	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check bucket")
		return err
	}
	if exists {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "bucket exists")
		return nil
	}

	if err = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make bucket")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "made bucket")
	return nil
}

func (u *MinioUploader) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	key string,
) error {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx, span := tracer.Start(ctx, "MinioUploader.Upload", trace.WithAttributes(
		attribute.String("bucket", u.bucket),
		attribute.String("key", key),
		attribute.Int64("length", length),
		attribute.String("contentType", contentType),
	))
	defer span.End()

	info, err := u.client.PutObject(ctx, u.bucket, key, reader, length, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put object")
		return err
	}

	span.AddEvent("stored", trace.WithAttributes(attribute.String("etag", info.ETag)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "put object")
	return nil
}

func (u *MinioUploader) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "MinioUploader.Exists", trace.WithAttributes(
		attribute.String("bucket", u.bucket),
		attribute.String("key", key),
	))
	defer span.End()

	_, err := u.client.StatObject(ctx, u.bucket, key, minio.StatObjectOptions{})
	switch {
	case err == nil:
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "object exists")
		return true, nil
	case minio.ToErrorResponse(err).Code == "NoSuchKey":
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "object missing")
		return false, nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to stat object")
		return false, err
	}
}

func (u *MinioUploader) StoreIdentifier(_ context.Context) (string, error) {
	return "s3:" + u.bucket, nil
}

// Query-signed GET url. `filename` becomes the attachment name of the response.
func (u *MinioUploader) PresignedDownloadURL(
	ctx context.Context,
	key string,
	filename string,
	duration time.Duration,
) (string, error) {
	ctx, span := tracer.Start(ctx, "MinioUploader.PresignedDownloadURL", trace.WithAttributes(
		attribute.String("key", key),
		attribute.String("filename", filename),
		attribute.String("duration", duration.String()),
	))
	defer span.End()

	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", AttachmentDisposition(filename))
	}

	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, key, duration, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to presign url")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "presigned url")
	return presigned.String(), nil
}
