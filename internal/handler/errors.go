package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/clinical-intake/internal/service"
)

var errInternal = echo.Map{"error": "internal server error"}

// respondError maps service errors to status codes. Anything unknown is
// logged and answered with a generic 500.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidSSN):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ssn: must contain exactly 9 digits"})
	case errors.Is(err, service.ErrNotClinician):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "patient not found"})
	case errors.Is(err, service.ErrDuplicateSSN):
		return c.JSON(http.StatusConflict, echo.Map{"error": "a patient with this ssn already exists"})
	}
	log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("route", c.Path()),
		zap.Error(err),
	)
	return c.JSON(http.StatusInternalServerError, errInternal)
}

// HTTPErrorHandler replaces echo's default so that routing errors keep
// their status while everything else, including recovered panics, becomes
// the generic 500 body.
func HTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok {
				msg = s
			}
			err = c.JSON(he.Code, echo.Map{"error": msg})
		} else {
			log.Error("unhandled error",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err),
			)
			err = c.JSON(http.StatusInternalServerError, errInternal)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}

func isValidation(err error) bool { return errors.Is(err, service.ErrValidation) }

func isNotFound(err error) bool { return errors.Is(err, service.ErrNotFound) }
