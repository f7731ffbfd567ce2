package hash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hackhub/submissions-api/internal/hash")

// Hex encoded sha256 of everything left in `r`. Consumes the reader.
func Reader(ctx context.Context, r io.Reader) (string, error) {
	_, span := tracer.Start(ctx, "Reader")
	defer span.End()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy into hasher")
		return "", err
	}

	sum := hex.EncodeToString(h.Sum(nil))

	span.AddEvent("digested", trace.WithAttributes(attribute.String("sum", sum)))

	return sum, nil
}

func File(ctx context.Context, path string) (string, error) {
	ctx, span := tracer.Start(ctx, "File", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	f, err := os.Open(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open file")
		return "", err
	}
	defer f.Close()

	return Reader(ctx, f)
}

func Buffer(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
