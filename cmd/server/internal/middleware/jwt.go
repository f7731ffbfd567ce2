package middleware

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/cmd/server/internal/response"
	"github.com/hackhub/submissions-api/internal/logger"
)

const (
	RoleAdmin       = "admin"
	RoleParticipant = "participant"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims issued by the competition's auth service
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func permissionsForRole(role string) models.Permissions {
	switch role {
	case RoleAdmin:
		return models.Permissions{Admin: true, Participant: true}
	case RoleParticipant:
		return models.Permissions{Participant: true}
	default:
		return models.Permissions{}
	}
}

// Parses and verifies an HS256 signed token
func ParseToken(secret []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(*jwt.Token) (any, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Signs claims with the shared secret, used by tooling and tests
func SignToken(secret []byte, claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Authenticates `Authorization: Bearer <jwt>` requests.
//
// Requests without a bearer token pass through untouched so basic auth can
// handle them. A bearer token that does not verify is rejected.
func (h *Handler) BearerAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || len(h.JWTSecret) == 0 {
				return next(c)
			}

			ctx, span := tracer.Start(c.Request().Context(), "BearerAuth")
			defer span.End()

			claims, err := ParseToken(h.JWTSecret, strings.TrimSpace(tokenString))
			if err != nil {
				logger.Logger.DebugContext(ctx, "rejected bearer token", "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Ok, "invalid bearer token")
				return response.UnauthorizedError
			}

			span.SetAttributes(
				attribute.String("claims.userId", claims.UserID),
				attribute.String("claims.role", claims.Role),
			)

			// tokens are issued for users, not api keys, so the id is informational
			id, err := uuid.Parse(claims.UserID)
			if err != nil {
				id = uuid.Nil
			}

			c.Set(AuthKey, &models.Auth{
				Model:       models.Model{ID: id},
				Note:        claims.Email,
				Permissions: permissionsForRole(claims.Role),
				Active:      models.NewNullFromData(true),
			})

			span.RecordError(nil)
			span.SetStatus(codes.Ok, "authenticated bearer token")
			return next(c)
		}
	}
}
