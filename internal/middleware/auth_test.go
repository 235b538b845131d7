package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]*auth.Token

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if t, ok := f[idToken]; ok {
		return t, nil
	}
	return nil, errors.New("bad token")
}

func run(t *testing.T, h echo.HandlerFunc, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddleware(fakeVerifier{
		"user":  {UID: "u1", Claims: map[string]interface{}{}},
		"admin": {UID: "a1", Claims: map[string]interface{}{"admin": true}},
	})
	var gotUID string
	var gotAdmin bool
	next := func(c echo.Context) error {
		gotUID, _ = c.Get(ContextUID).(string)
		gotAdmin, _ = c.Get(ContextAdmin).(bool)
		return c.NoContent(http.StatusNoContent)
	}

	rec := run(t, m.RequireAuth(next), "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = run(t, m.RequireAuth(next), "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_token")

	rec = run(t, m.RequireAuth(next), "Authorization", "Bearer user")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", gotUID)
	assert.False(t, gotAdmin)

	rec = run(t, m.RequireAuth(RequireAdmin(next)), "Authorization", "Bearer user")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = run(t, m.RequireAuth(RequireAdmin(next)), "Authorization", "Bearer admin")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, gotAdmin)
}

func TestRequireCronSecret(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	assert.Equal(t, http.StatusUnauthorized, run(t, RequireCronSecret("s3cret")(ok), CronHeader, "wrong").Code)
	assert.Equal(t, http.StatusOK, run(t, RequireCronSecret("s3cret")(ok), CronHeader, "s3cret").Code)
	assert.Equal(t, http.StatusUnauthorized, run(t, RequireCronSecret("")(ok), CronHeader, "").Code)
}

func TestOptionalAuth(t *testing.T) {
	m := NewAuthMiddleware(fakeVerifier{"user": {UID: "u1", Claims: map[string]interface{}{}}})
	var gotUID string
	next := func(c echo.Context) error {
		gotUID, _ = c.Get(ContextUID).(string)
		return c.NoContent(http.StatusNoContent)
	}

	rec := run(t, m.OptionalAuth(next), "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, gotUID)

	rec = run(t, m.OptionalAuth(next), "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, gotUID)

	rec = run(t, m.OptionalAuth(next), "Authorization", "Bearer user")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", gotUID)
}
