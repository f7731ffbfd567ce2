package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackhub/submissions-api/cmd/server/internal/models"
)

func paramContext(name, value string) echo.Context {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames(name)
	c.SetParamValues(value)
	return c
}

func TestParamUUID(t *testing.T) {
	id := uuid.New()

	parsed, err := ParamUUID(paramContext("team_id", " "+id.String()+" "), "team_id")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParamUUID(paramContext("team_id", "team-1"), "team_id")
	assert.Error(t, err)

	_, err = ParamUUID(paramContext("team_id", id.String()), "submission_id")
	assert.Error(t, err, "missing parameter")
}

func TestLoaded(t *testing.T) {
	c := paramContext("team_id", "")

	_, ok := Loaded[models.Team](c, "team")
	assert.False(t, ok, "nothing stored")

	c.Set("team", &models.Challenge{})
	_, ok = Loaded[models.Team](c, "team")
	assert.False(t, ok, "wrong type")

	c.Set("team", (*models.Team)(nil))
	_, ok = Loaded[models.Team](c, "team")
	assert.False(t, ok, "nil row")

	team := &models.Team{Name: "red"}
	c.Set("team", team)
	loaded, ok := Loaded[models.Team](c, "team")
	require.True(t, ok)
	assert.Same(t, team, loaded)
}
