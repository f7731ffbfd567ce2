package routes

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	servermiddleware "github.com/hackhub/submissions-api/cmd/server/internal/middleware"
	"github.com/hackhub/submissions-api/internal/config"
	"github.com/hackhub/submissions-api/internal/validator"
)

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	origins := config.DefaultAllowOrigins
	if cfg.CORS != nil && len(cfg.CORS.AllowOrigins) > 0 {
		origins = cfg.CORS.AllowOrigins
	}

	return middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowCredentials: true,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}
}

func BuildEcho(logger *slog.Logger, cfg *config.Config) (*echo.Echo, error) {
	e := echo.New()

	validate := validator.Create()
	e.Validator = &validate

	e.Pre(middleware.AddTrailingSlash())

	e.Use(
		otelecho.Middleware("submissions-api"),
		slogecho.NewWithConfig(logger, slogecho.Config{}),
		servermiddleware.ReceivedAt(),
		middleware.CORSWithConfig(corsConfig(cfg)),
		middleware.BodyLimit(cfg.Uploads.MaxBytes),
	)

	e.GET("/health/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	return e, nil
}
