package v1

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	srverr "github.com/hackhub/submissions-api/cmd/server/internal/error"
	"github.com/hackhub/submissions-api/cmd/server/internal/intake"
	servermiddleware "github.com/hackhub/submissions-api/cmd/server/internal/middleware"
	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/cmd/server/internal/ratelimit"
	"github.com/hackhub/submissions-api/cmd/server/internal/scores"
	"github.com/hackhub/submissions-api/internal/config"
	"github.com/hackhub/submissions-api/internal/logger"
)

const name = "github.com/hackhub/submissions-api/cmd/server/internal/routes/v1"

var tracer = otel.Tracer(name)

const (
	fileContextKey = "submissionFile"
	teamContextKey = "team"
)

var (
	adminOnly   = &models.Permissions{Admin: true}
	participant = &models.Permissions{Participant: true}
)

type Handler struct {
	intake     *intake.Intake
	aggregator *scores.Aggregator
	config     *config.Config
}

func NewRedisLimiter(
	redisHost string,
	limiterKey string,
	perMinute int64,
	failOpen bool,
	onlyMethod *string,
) middleware.RateLimiterConfig {
	l := logger.Logger
	var store middleware.RateLimiterStore

	redisAddr := redisHost + ":6379"
	l.Debug("Setting up rate limiter with Redis", "redis", redisAddr, "limiter", limiterKey)
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	rdConf := &ratelimit.RedisLimiterConfig{
		PerMinute:   perMinute,
		RedisClient: rdb,
		LimiterKey:  limiterKey,
		FailOpen:    failOpen,
	}
	store = ratelimit.NewRedisLimitStore(*rdConf)

	skipper := middleware.DefaultSkipper
	if onlyMethod != nil {
		skipper = func(c echo.Context) bool {
			return c.Request().Method != *onlyMethod
		}
	}

	return middleware.RateLimiterConfig{
		Skipper: skipper,
		Store:   store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			auth, ok := c.Get(servermiddleware.AuthKey).(*models.Auth)
			if !ok {
				return "", srverr.ErrTypeAssertMismatch
			}
			// bearer tokens without a user id are limited by their email
			if auth.ID == uuid.Nil {
				return auth.Note, nil
			}
			return auth.ID.String(), nil
		},
		ErrorHandler: func(context echo.Context, _ error) error {
			return context.JSON(http.StatusForbidden, nil)
		},
		DenyHandler: func(context echo.Context, _ string, _ error) error {
			return context.JSON(http.StatusTooManyRequests, nil)
		},
	}
}

func NewHandler(
	submissionIntake *intake.Intake,
	aggregator *scores.Aggregator,
	cfg *config.Config,
) Handler {
	return Handler{
		intake:     submissionIntake,
		aggregator: aggregator,
		config:     cfg,
	}
}

func (h *Handler) AddRoutes(e *echo.Echo, middlewareHandler *servermiddleware.Handler) {
	l := logger.Logger

	v1Group := e.Group(
		"/v1",
		middlewareHandler.BearerAuth(),
		middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
			Skipper:   servermiddleware.AuthenticatedSkipper,
			Validator: middlewareHandler.BasicAuthValidator,
		}),
	)

	if h.config.RateLimit != nil && h.config.RateLimit.GlobalPerMinute > 0 {
		v1Group.Use(
			middleware.RateLimiterWithConfig(
				NewRedisLimiter(
					h.config.RateLimit.RedisHost,
					"global",
					h.config.RateLimit.GlobalPerMinute,
					h.config.RateLimit.FailOpen,
					nil,
				),
			),
		)
	} else {
		l.Warn("not configured to have a global rate limit")
	}

	v1Group.GET("/ping/", h.Ping)

	submissionsGroup := v1Group.Group("/submissions")

	if h.config.RateLimit != nil && h.config.RateLimit.SubmitPerMinute > 0 {
		post := http.MethodPost

		submissionsGroup.Use(
			middleware.RateLimiterWithConfig(
				NewRedisLimiter(
					h.config.RateLimit.RedisHost,
					"submit",
					h.config.RateLimit.SubmitPerMinute,
					h.config.RateLimit.FailOpen,
					&post,
				),
			),
		)
	} else {
		l.Warn("not configured to have a submit rate limit")
	}

	submissionsGroup.GET(
		"/",
		h.ListSubmissions,
		servermiddleware.HasPermissions(servermiddleware.AuthKey, adminOnly),
	)
	submissionsGroup.POST(
		"/",
		h.CreateSubmission,
		servermiddleware.HasAnyPermission(servermiddleware.AuthKey, adminOnly, participant),
		servermiddleware.SubmissionFile(
			h.config.Uploads.TempDir,
			h.config.Uploads.AllowedExtensions,
			fileContextKey,
		),
	)
	submissionsGroup.GET(
		"/:submission_id/",
		h.GetSubmission,
		servermiddleware.HasPermissions(servermiddleware.AuthKey, adminOnly),
	)

	teamGroup := submissionsGroup.Group(
		"/team/:team_id",
		servermiddleware.HasAnyPermission(servermiddleware.AuthKey, adminOnly, participant),
	)

	teamGroup.GET(
		"/",
		h.TeamSubmissions,
		servermiddleware.PopulateFromIDParam[models.Team](
			middlewareHandler,
			"team_id",
			teamContextKey,
			srverr.ErrNoTeamSubmissions.Error(),
		),
	)
	teamGroup.GET("/scores/", h.TeamTotalScore)
	teamGroup.GET("/scores/category/", h.TeamCategoryScores)
}
