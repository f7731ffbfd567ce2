package archive

import (
	"bytes"
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackhub/submissions-api/internal/audit"
	"github.com/hackhub/submissions-api/internal/types"
	"github.com/hackhub/submissions-api/internal/upload"
)

var tracer = otel.Tracer("github.com/hackhub/submissions-api/internal/archive")

var ErrNoSource = errors.New("archive needs a local file or a buffer")

// Exactly one of LocalFilePath and Buffer must be set
type FileMetadata struct {
	LocalFilePath *string
	Buffer        []byte
	ArchivedFile  types.ArchivedFile
	Entity        audit.FileArchivedEntity
	EntityID      string
}

func store(ctx context.Context, u upload.Uploader, metadata *FileMetadata) (string, error) {
	switch {
	case metadata.LocalFilePath != nil:
		return upload.HashedFile(ctx, u, *metadata.LocalFilePath)
	case metadata.Buffer != nil:
		return upload.Hashed(ctx, u, bytes.NewReader(metadata.Buffer), int64(len(metadata.Buffer)))
	default:
		return "", ErrNoSource
	}
}

// Copies a file into the archive store under its content hash and emits a
// file_archived audit event. Returns the object name.
//
//revive:disable-next-line
func ArchiveFile(
	ctx context.Context,
	auditContext audit.Context,
	u upload.Uploader,
	metadata *FileMetadata,
) (string, error) { //revive:disable-line:exported
	ctx, span := tracer.Start(ctx, "ArchiveFile", trace.WithAttributes(
		attribute.String("file", string(metadata.ArchivedFile)),
		attribute.String("entity", string(metadata.Entity)),
		attribute.String("entity.id", metadata.EntityID),
		attribute.Bool("fromDisk", metadata.LocalFilePath != nil),
	))
	defer span.End()

	objectName, err := store(ctx, u, metadata)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store file")
		return "", err
	}

	identifier, err := u.StoreIdentifier(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to identify store")
		return "", err
	}

	audit.LogFileArchived(
		auditContext,
		identifier,
		objectName,
		metadata.ArchivedFile,
		metadata.Entity,
		metadata.EntityID,
	)

	span.SetAttributes(attribute.String("object", objectName))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "archived file")
	return objectName, nil
}
