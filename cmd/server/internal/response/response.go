package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	srverr "github.com/hackhub/submissions-api/cmd/server/internal/error"
	"github.com/hackhub/submissions-api/internal/scoring"
	"github.com/hackhub/submissions-api/internal/types"
)

var (
	InternalServerError = echo.NewHTTPError(
		http.StatusInternalServerError,
		types.StringError(serverErrorMessage),
	)
	NotFoundError     = echo.NewHTTPError(http.StatusNotFound, types.StringError("not found"))
	UnauthorizedError = echo.NewHTTPError(http.StatusUnauthorized, types.StringError("Unauthorized"))
)

const (
	serverErrorMessage      = "Server error"
	rowCountMismatchMessage = "Mismatch in number of rows."
)

// Status code for an error raised below the handlers
func StatusFor(err error) int {
	switch {
	case errors.Is(err, srverr.ErrValidation),
		errors.Is(err, srverr.ErrDuplicateSubmission),
		errors.Is(err, scoring.ErrRowCountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, srverr.ErrChallengeNotFound),
		errors.Is(err, srverr.ErrSubmissionNotFound),
		errors.Is(err, srverr.ErrNoTeamSubmissions):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Maps an operation error onto an HTTP error.
//
// Client errors carry their own text as the message. Server errors get a
// generic message. The raw error is attached as detail only when `detailed`.
func FromError(err error, detailed bool) *echo.HTTPError {
	status := StatusFor(err)

	message := serverErrorMessage
	switch {
	case status >= http.StatusInternalServerError:
	case errors.Is(err, scoring.ErrRowCountMismatch):
		// counts stay in the detail
		message = rowCountMismatchMessage
	default:
		message = err.Error()
	}

	body := types.StringError(message)
	if detailed {
		body = types.DetailedError(message, err)
	}

	return echo.NewHTTPError(status, body)
}
