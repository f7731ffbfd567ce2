package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceivedAt(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.True(t, ReceivedAtFrom(c).IsZero())

	before := time.Now()
	var seen time.Time
	err := ReceivedAt()(func(c echo.Context) error {
		seen = ReceivedAtFrom(c)
		return c.NoContent(http.StatusOK)
	})(c)
	require.NoError(t, err)

	assert.False(t, seen.Before(before.Add(-time.Second)))
	assert.False(t, seen.After(time.Now()))
	assert.Equal(t, time.UTC, seen.Location())
}
