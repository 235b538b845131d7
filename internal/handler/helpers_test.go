package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/foodrescue-backend/internal/middleware"
	"github.com/shinyyama/foodrescue-backend/internal/service"
)

type call struct {
	method string
	route  string
	path   string
	body   string
	actor  *service.Actor
	header http.Header
}

func serve(t *testing.T, h echo.HandlerFunc, c call) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	withActor := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.actor != nil {
				ctx.Set(appmw.ContextUID, c.actor.UID)
				ctx.Set(appmw.ContextAdmin, c.actor.Admin)
			}
			return next(ctx)
		}
	}
	e.Add(c.method, c.route, h, withActor)

	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
