package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackhub/submissions-api/internal/hash"
)

var tracer = otel.Tracer("github.com/hackhub/submissions-api/internal/upload")

// Any failure to store a file or produce its download URL
var ErrUpload = errors.New("failed to upload file")

//go:generate mockgen -destination ./mock/mock.go -package mock . Uploader

// Generic file persistence interface
type Uploader interface {
	// Create / Overwrite object contents by `key`
	Upload(ctx context.Context, reader io.ReadSeeker, length int64, key string) error
	// Check if an object exists. Used to skip re-uploading identical content, not authoritative.
	//
	// May always return false
	Exists(ctx context.Context, key string) (bool, error)
	// Bucket or container the uploader writes to. Useful for logging and auditing.
	StoreIdentifier(ctx context.Context) (string, error)
	// Anonymous, read only URL for `key` that is valid for `duration`.
	//
	// When `filename` is set the response is served as an attachment with that name.
	PresignedDownloadURL(
		ctx context.Context,
		key string,
		filename string,
		duration time.Duration,
	) (string, error)
}

// Content-Disposition value forcing a download of `filename`
func AttachmentDisposition(filename string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, filename)

	return fmt.Sprintf(`attachment; filename="%s"`, cleaned)
}

// Uploads a buffer where the key will be the hash of the contents of `reader` (CAS)
//
// Will:
// 1. seek to 0 so only pass in a buffer you want completely uploaded
// 2. not upload if a file with the same hash already exists
func Hashed(
	ctx context.Context,
	u Uploader,
	reader io.ReadSeeker,
	length int64,
) (string, error) {
	return hashedKey(ctx, u, reader, length, func(sum string) string { return sum })
}

func hashedKey(
	ctx context.Context,
	u Uploader,
	reader io.ReadSeeker,
	length int64,
	keyFor func(sum string) string,
) (string, error) {
	ctx, span := tracer.Start(ctx, "UploadHashed")
	defer span.End()

	_, err := reader.Seek(0, io.SeekStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to seek to start")
		return "", err
	}

	sum, err := hash.Reader(ctx, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to hash reader")
		return "", err
	}

	key := keyFor(sum)
	span.SetAttributes(attribute.String("key", key))

	exists, err := u.Exists(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check if object exists")
		return "", err
	}

	if exists {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "found existing object")
		return key, nil
	}

	_, err = reader.Seek(0, io.SeekStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to seek to start")
		return "", err
	}

	err = u.Upload(ctx, reader, length, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload object")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded object by hash")
	return key, nil
}

// Uploads a file by path where the key will be the hash of its contents (CAS)
func HashedFile(ctx context.Context, u Uploader, filePath string) (string, error) {
	ctx, span := tracer.Start(ctx, "UploadHashedFile", trace.WithAttributes(
		attribute.String("filePath", filePath),
	))
	defer span.End()

	f, err := os.Open(filePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open file")
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to stat file")
		return "", err
	}

	key, err := Hashed(ctx, u, f, stat.Size())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded file")
	return key, nil
}

// An attachment once stored
type Stored struct {
	// Object key, kept on the owning record
	Key string
	// Download URL of Key, expires with the ttl it was presigned for
	URL string
}

// Stores the file at `localPath` under `<folder>/<sha256>/<filename>` and
// presigns a download URL valid for `ttl`. The URL serves the object as an
// attachment named `filename`.
//
// The local file is removed once the URL has been produced. On error it is
// left in place and the error wraps [ErrUpload].
func Attachment(
	ctx context.Context,
	u Uploader,
	localPath string,
	filename string,
	folder string,
	ttl time.Duration,
) (*Stored, error) {
	ctx, span := tracer.Start(ctx, "UploadAttachment", trace.WithAttributes(
		attribute.String("localPath", localPath),
		attribute.String("filename", filename),
		attribute.String("folder", folder),
	))
	defer span.End()

	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		err := fmt.Errorf("%w: invalid filename %q", ErrUpload, filename)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid filename")
		return nil, err
	}

	key, err := uploadAttachment(ctx, u, localPath, folder, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload attachment")
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}

	url, err := DownloadURL(ctx, u, key, ttl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to presign attachment")
		return nil, err
	}

	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		// object is already stored, only record the leftover file
		span.AddEvent("failed to remove local file", trace.WithAttributes(
			attribute.String("error", err.Error()),
		))
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded attachment")
	return &Stored{Key: key, URL: url}, nil
}

// Fresh download URL for an attachment stored by [Attachment]. The last key
// segment is the filename it is served as.
func DownloadURL(ctx context.Context, u Uploader, key string, ttl time.Duration) (string, error) {
	url, err := u.PresignedDownloadURL(ctx, key, path.Base(key), ttl)
	if err != nil {
		return "", fmt.Errorf("%w: presigning %s: %w", ErrUpload, key, err)
	}
	return url, nil
}

func uploadAttachment(
	ctx context.Context,
	u Uploader,
	localPath, folder, name string,
) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	return hashedKey(ctx, u, f, stat.Size(), func(sum string) string {
		return path.Join(folder, sum, name)
	})
}
