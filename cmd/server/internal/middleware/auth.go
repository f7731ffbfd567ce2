package middleware

import (
	"context"
	"reflect"
	"sync"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/cmd/server/internal/response"
)

const name string = "github.com/hackhub/submissions-api/cmd/server/internal/middleware"

var tracer = otel.Tracer(name)

// Key under which the authenticated principal is stored on the echo context
const AuthKey = "auth"

// Hash compared against when there is no real key to check, so unknown ids
// cost as much as wrong tokens
var decoyHash = sync.OnceValue(func() string {
	hash, err := argon2id.CreateHash(uuid.NewString(), argon2id.DefaultParams)
	if err != nil {
		panic(err)
	}
	return hash
})

func decoyCompare(ctx context.Context) {
	_, span := tracer.Start(ctx, "decoyCompare")
	defer span.End()

	if _, err := argon2id.ComparePasswordAndHash("not a real api key", decoyHash()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decoy comparison failed")
	}
}

func decoyLookup(ctx context.Context, db *gorm.DB) {
	ctx, span := tracer.Start(ctx, "decoyLookup")
	defer span.End()

	_, err := models.ByID[models.Auth](ctx, db, uuid.New())
	if err != nil && !models.IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decoy lookup failed")
	}
}

// Lets requests already authenticated by a bearer token skip basic auth
func AuthenticatedSkipper(c echo.Context) bool {
	_, ok := c.Get(AuthKey).(*models.Auth)
	return ok
}

// Upgrades a stored hash made with outdated argon2id parameters
func rehash(ctx context.Context, db *gorm.DB, auth *models.Auth, token string) error {
	ctx, span := tracer.Start(ctx, "rehash", trace.WithAttributes(
		attribute.String("id", auth.ID.String()),
	))
	defer span.End()

	hash, err := argon2id.CreateHash(token, argon2id.DefaultParams)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to hash token")
		return err
	}

	err = db.WithContext(ctx).Model(auth).Update("token", hash).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store new hash")
		return err
	}

	auth.Token = hash
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "rehashed token")
	return nil
}

// Basic auth validator: the username is the api key id, the password its token
func (h *Handler) BasicAuthValidator(rawID, token string, c echo.Context) (bool, error) {
	ctx, span := tracer.Start(c.Request().Context(), "BasicAuthValidator", trace.WithAttributes(
		attribute.String("id.raw", rawID),
	))
	defer span.End()

	db := h.DB.WithContext(ctx)

	id, err := uuid.Parse(rawID)
	if err != nil {
		span.AddEvent("malformed key id")
		decoyLookup(ctx, db)
		decoyCompare(ctx)
		return false, nil
	}

	auth, err := models.ByID[models.Auth](ctx, db, id)
	if models.IsNotFound(err) {
		span.AddEvent("unknown key id")
		decoyCompare(ctx)
		return false, nil
	}
	if err != nil {
		decoyCompare(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load api key")
		return false, response.InternalServerError
	}

	span.SetAttributes(
		attribute.String("note", auth.Note),
		attribute.Bool("active", auth.Active.Valid && auth.Active.V),
	)

	match, params, err := argon2id.CheckHash(token, auth.Token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stored hash is unreadable")
		return false, response.InternalServerError
	}

	// the hash is always checked first so inactive keys take as long as active ones
	if !auth.Active.Valid || !auth.Active.V {
		span.AddEvent("key is inactive")
		return false, nil
	}

	if !match {
		span.AddEvent("wrong token")
		return false, nil
	}

	if !reflect.DeepEqual(params, argon2id.DefaultParams) {
		if err := rehash(ctx, db, auth, token); err != nil {
			return false, response.InternalServerError
		}
	}

	span.AddEvent("authenticated")
	c.Set(AuthKey, auth)
	return true, nil
}
