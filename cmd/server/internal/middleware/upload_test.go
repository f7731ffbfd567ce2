package middleware

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allowedExtensions = []string{".csv", ".zip", ".pdf", ".jpg", ".png"}

func multipartRequest(t *testing.T, filename string, content string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("challengeId", "c"))
	if filename != "" {
		part, err := writer.CreateFormFile(SubmissionFileField, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func TestSubmissionFile(t *testing.T) {
	t.Run("StoresAndRemovesFile", func(t *testing.T) {
		dir := t.TempDir()
		c := echo.New().NewContext(
			multipartRequest(t, "predictions.CSV", "Language\nGo\n"),
			httptest.NewRecorder(),
		)

		var seen *UploadedFile
		err := SubmissionFile(dir, allowedExtensions, "file")(func(c echo.Context) error {
			var ok bool
			seen, ok = c.Get("file").(*UploadedFile)
			require.True(t, ok)

			data, err := os.ReadFile(seen.Path)
			require.NoError(t, err)
			assert.Equal(t, "Language\nGo\n", string(data))
			return nil
		})(c)
		require.NoError(t, err)

		require.NotNil(t, seen)
		assert.Equal(t, "predictions.CSV", seen.Filename)
		assert.Equal(t, dir, filepath.Dir(seen.Path))
		assert.True(t, strings.HasSuffix(seen.Path, "-predictions.CSV"))
		assert.NoFileExists(t, seen.Path, "temp file must be removed after the request")
	})

	t.Run("RemovesFileOnHandlerError", func(t *testing.T) {
		dir := t.TempDir()
		c := echo.New().NewContext(
			multipartRequest(t, "report.pdf", "%PDF"),
			httptest.NewRecorder(),
		)

		err := SubmissionFile(dir, allowedExtensions, "file")(func(echo.Context) error {
			return echo.ErrBadRequest
		})(c)
		assert.ErrorIs(t, err, echo.ErrBadRequest)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("RejectsExtension", func(t *testing.T) {
		dir := t.TempDir()
		c := echo.New().NewContext(
			multipartRequest(t, "payload.exe", "MZ"),
			httptest.NewRecorder(),
		)

		called := false
		err := SubmissionFile(dir, allowedExtensions, "file")(func(echo.Context) error {
			called = true
			return nil
		})(c)
		assert.False(t, called)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "rejected files are never written")
	})

	t.Run("NoFile", func(t *testing.T) {
		c := echo.New().NewContext(multipartRequest(t, "", ""), httptest.NewRecorder())

		called := false
		err := SubmissionFile(t.TempDir(), allowedExtensions, "file")(func(c echo.Context) error {
			called = true
			assert.Nil(t, c.Get("file"))
			return nil
		})(c)
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("NotMultipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"teamId":"x"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := echo.New().NewContext(req, httptest.NewRecorder())

		called := false
		err := SubmissionFile(t.TempDir(), allowedExtensions, "file")(func(echo.Context) error {
			called = true
			return nil
		})(c)
		require.NoError(t, err)
		assert.True(t, called)
	})
}
