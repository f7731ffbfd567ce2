package fetch

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hackhub/submissions-api/internal/fetch")

type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Downloads `url` into a new file inside `dir` and returns its path.
// A partially written file is removed on error.
func ToFile(ctx context.Context, f Fetcher, url string, dir string) (string, error) {
	ctx, span := tracer.Start(ctx, "ToFile", trace.WithAttributes(
		attribute.String("url", url),
		attribute.String("dir", dir),
	))
	defer span.End()

	body, err := f.Fetch(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return "", err
	}
	defer body.Close()

	out, err := os.CreateTemp(dir, "fetch-*"+filepath.Ext(url))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create file")
		return "", err
	}
	defer out.Close()

	written, err := io.Copy(out, body)
	if err != nil {
		_ = os.Remove(out.Name())
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write file")
		return "", err
	}

	span.SetAttributes(attribute.Int64("bytes", written))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "fetched to file")
	return out.Name(), nil
}
