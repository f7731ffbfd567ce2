package middleware

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackhub/submissions-api/cmd/server/internal/response"
	"github.com/hackhub/submissions-api/internal/logger"
	"github.com/hackhub/submissions-api/internal/types"
	"github.com/hackhub/submissions-api/internal/validator"
)

// Multipart field carrying the submitted file
const SubmissionFileField = "submissionFile"

// A file received with the request and written to the temp dir
type UploadedFile struct {
	// Request scoped copy, removed when the request finishes
	Path string
	// Name the client sent, reduced to its base name
	Filename string
	Size     int64
}

var invalidFileError = echo.NewHTTPError(
	http.StatusBadRequest,
	types.StringError("File is missing or invalid"),
)

func disallowedFileError(allowed []string) *echo.HTTPError {
	return echo.NewHTTPError(
		http.StatusBadRequest,
		types.StringError(fmt.Sprintf("Only %s files are allowed", strings.Join(allowed, ", "))),
	)
}

// Accepts an optional file in the `SubmissionFileField` multipart field.
//
// Files with an extension outside of `allowed` are rejected. Accepted files
// are copied to `tempDir` and stored on the context under `contextName`. The
// copy is removed once the rest of the chain returns, whatever the outcome.
func SubmissionFile(tempDir string, allowed []string, contextName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracer.Start(c.Request().Context(), "SubmissionFile", trace.WithAttributes(
				attribute.String("tempDir", tempDir),
			))
			defer span.End()

			header, err := c.FormFile(SubmissionFileField)
			if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
				span.AddEvent("no file attached")
				span.RecordError(nil)
				span.SetStatus(codes.Ok, "no file")
				return next(c)
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to read multipart file")
				return invalidFileError
			}

			filename := filepath.Base(header.Filename)
			span.SetAttributes(
				attribute.String("filename", filename),
				attribute.Int64("size", header.Size),
			)

			if !validator.AllowedExtension(filename, allowed) {
				span.AddEvent("rejected file extension")
				span.RecordError(nil)
				span.SetStatus(codes.Ok, "file extension not allowed")
				return disallowedFileError(allowed)
			}

			localPath := filepath.Join(tempDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filename))
			if err := saveMultipart(header, localPath); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to store upload in temp dir")
				logger.Logger.ErrorContext(ctx, "failed to store upload", "error", err)
				return response.InternalServerError
			}
			defer func() {
				if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
					logger.Logger.WarnContext(ctx, "failed to remove temp upload", "path", localPath, "error", err)
				}
			}()

			c.Set(contextName, &UploadedFile{Path: localPath, Filename: filename, Size: header.Size})

			span.RecordError(nil)
			span.SetStatus(codes.Ok, "stored upload")
			return next(c)
		}
	}
}

func saveMultipart(header *multipart.FileHeader, localPath string) error {
	src, err := header.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(localPath)
		return err
	}

	return dst.Close()
}
