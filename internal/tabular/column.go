package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hackhub/submissions-api/internal/tabular")

var (
	// A row, or the header, does not carry the requested column
	ErrColumnNotFound = errors.New("column not found")
	// The file could not be opened or parsed
	ErrIO = errors.New("failed to read tabular file")
)

// Reads every value of `column` from the CSV file at `path` in row order.
//
// The first record is the header. Rows are strict: a row without a value for
// `column` fails the whole read with [ErrColumnNotFound] instead of being
// skipped. The source file is never modified.
func ReadColumn(ctx context.Context, path string, column string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "ReadColumn", trace.WithAttributes(
		attribute.String("path", path),
		attribute.String("column", column),
	))
	defer span.End()

	if column == "" {
		err := fmt.Errorf("%w: empty column name", ErrColumnNotFound)
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty column name")
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open file")
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()

	values, err := readColumn(ctx, f, column)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read column")
		return nil, err
	}

	span.SetAttributes(attribute.Int("rows", len(values)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "read column")
	return values, nil
}

func readColumn(ctx context.Context, r io.Reader, column string) ([]string, error) {
	reader := csv.NewReader(r)
	// rows are checked individually so short rows surface as a missing column
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %q in empty file", ErrColumnNotFound, column)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	index := -1
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\uFEFF")
		}
		if strings.TrimSpace(name) == column {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %q not in header", ErrColumnNotFound, column)
	}

	values := []string{}
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}

		if index >= len(record) {
			return nil, fmt.Errorf("%w: %q missing on line %d", ErrColumnNotFound, column, line)
		}

		values = append(values, record[index])
	}

	return values, nil
}
