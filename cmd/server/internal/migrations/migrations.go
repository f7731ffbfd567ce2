package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/hackhub/submissions-api/internal/logger"
)

var tracer = otel.Tracer(
	"github.com/hackhub/submissions-api/cmd/server/internal/migrations",
)

func init() {
	goose.SetLogger(goose.NopLogger())
}

// Runs `migrate` against the connection pool behind `db` and records the
// schema version it leaves behind
func run(
	ctx context.Context,
	db *gorm.DB,
	operation string,
	migrate func(context.Context, *sql.DB) error,
) error {
	ctx, span := tracer.Start(ctx, operation)
	defer span.End()

	rawDB, err := db.DB()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no connection pool behind gorm")
		return err
	}

	if err = migrate(ctx, rawDB); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "migration failed")
		return err
	}

	version, err := goose.GetDBVersionContext(ctx, rawDB)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read schema version")
		return err
	}

	span.SetAttributes(attribute.Int64("version", version))
	logger.Logger.DebugContext(ctx, "schema migrated", "operation", operation, "version", version)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "migrated")
	return nil
}

// Applies every pending migration
func Up(ctx context.Context, db *gorm.DB) error {
	return run(ctx, db, "Up", func(ctx context.Context, rawDB *sql.DB) error {
		return goose.UpContext(ctx, rawDB, ".")
	})
}

// Rolls every migration back. Tests use it to reset the schema.
func Down(ctx context.Context, db *gorm.DB) error {
	return run(ctx, db, "Down", func(ctx context.Context, rawDB *sql.DB) error {
		return goose.DownToContext(ctx, rawDB, ".", 0)
	})
}

type statement struct {
	query string
	args  []any
}

func execStatements(ctx context.Context, tx *sql.Tx, statements ...statement) error {
	for _, s := range statements {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return err
		}
	}

	return nil
}
