package models

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const name string = "github.com/hackhub/submissions-api/cmd/server/internal/models"

var tracer = otel.Tracer(name)

func init() {
	// NUMERIC columns are numbers on the wire
	decimal.MarshalJSONWithoutQuotes = true
}

// Derived from gorm.Model
type Model struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ID        uuid.UUID `json:"id"        gorm:"primaryKey;default:uuidv7_sub_ms()"`
}

type SubmissionsAPIModel interface {
	GetID() uuid.UUID
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// Loads one row by primary key. A missing row is reported as
// [gorm.ErrRecordNotFound], see [IsNotFound].
func ByID[T SubmissionsAPIModel](ctx context.Context, db *gorm.DB, id uuid.UUID) (*T, error) {
	ctx, span := tracer.Start(ctx, "ByID", trace.WithAttributes(
		attribute.String("id", id.String()),
		attribute.String("type", typeName[T]()),
	))
	defer span.End()

	var row T
	if err := db.WithContext(ctx).Take(&row, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load row")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "loaded row")
	return &row, nil
}

// Reports whether any row of T matches `query`
func Exists[T SubmissionsAPIModel](
	ctx context.Context,
	db *gorm.DB,
	query any,
	args ...any,
) (bool, error) {
	ctx, span := tracer.Start(ctx, "Exists", trace.WithAttributes(
		attribute.String("query", fmt.Sprint(query)),
		attribute.Int("args", len(args)),
		attribute.String("type", typeName[T]()),
	))
	defer span.End()

	var count int64
	err := db.WithContext(ctx).Model(new(T)).Where(query, args...).Limit(1).Count(&count).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query")
		return false, fmt.Errorf("failed to query %s: %w", typeName[T](), err)
	}

	span.SetAttributes(attribute.Bool("exists", count > 0))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "checked existence")
	return count > 0, nil
}

// True when `err` is a missing row rather than a failed query
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Wraps a value that is always present into a nullable column
func NewNullFromData[T any](d T) datatypes.Null[T] {
	return datatypes.NewNull(d)
}

// A nil pointer becomes SQL NULL
func NewNull[T any](d *T) datatypes.Null[T] {
	if d == nil {
		return datatypes.Null[T]{}
	}
	return datatypes.NewNull(*d)
}
