package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/clinical-intake/internal/service"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: bad date", service.ErrValidation), http.StatusBadRequest},
		{service.ErrInvalidSSN, http.StatusBadRequest},
		{service.ErrNotClinician, http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrDuplicateSSN, http.StatusConflict},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			_ = respondError(c, zap.NewNop(), tt.err)

			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestRespondError_HidesInternalDetail(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	_ = respondError(c, zap.New(core), errors.New("dial tcp 10.0.0.5:3306: refused"))

	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Equal(t, 1, logs.Len())
}

func TestHTTPErrorHandler(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler(zap.NewNop())
	e.Use(echomw.Recover())
	e.GET("/panic", func(echo.Context) error { panic("boom") })
	e.GET("/fail", func(echo.Context) error { return errors.New("secret detail") })
	e.GET("/bad", func(echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest, "nope") })

	for path, want := range map[string]struct {
		code int
		body string
	}{
		"/panic":   {http.StatusInternalServerError, `{"error":"internal server error"}`},
		"/fail":    {http.StatusInternalServerError, `{"error":"internal server error"}`},
		"/bad":     {http.StatusBadRequest, `{"error":"nope"}`},
		"/missing": {http.StatusNotFound, `{"error":"Not Found"}`},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want.code, rec.Code, path)
		assert.JSONEq(t, want.body, rec.Body.String(), path)
	}
}
