package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

// ErrorHandler renders every error outcome as an ErrorView.
func ErrorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}
		if code >= http.StatusInternalServerError {
			logger.WithFields(log.Fields{"path": c.Request().URL.Path, "method": c.Request().Method}).Errorf("request failed: %v", err)
			msg = http.StatusText(code)
		}
		view := domain.ErrorView{
			StatusCode: code,
			Message:    msg,
			RequestID:  c.Response().Header().Get(echo.HeaderXRequestID),
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, view)
		}
		if werr != nil {
			logger.Errorf("write error response: %v", werr)
		}
	}
}

// httpError maps the domain error taxonomy onto HTTP outcomes.
func httpError(err error) error {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return echo.NewHTTPError(http.StatusBadRequest, http.StatusText(http.StatusBadRequest)).SetInternal(err)
	case errors.Is(err, domain.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized)).SetInternal(err)
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, http.StatusText(http.StatusNotFound)).SetInternal(err)
	default:
		return err
	}
}

// respondError renders validation failures with their form and hands every
// other error to the error handler.
func respondError(c echo.Context, err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		setErrorStage(c, "validation")
		return c.JSON(http.StatusUnprocessableEntity, validationResponse{Form: verr.Form, Errors: verr.Fields})
	}
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		setErrorStage(c, "bad_request")
	case errors.Is(err, domain.ErrUnauthorized):
		setErrorStage(c, "authorization")
	case errors.Is(err, domain.ErrNotFound):
		setErrorStage(c, "not_found")
	default:
		setErrorStage(c, "storage")
	}
	return httpError(err)
}

var errorPages = map[int]string{
	http.StatusInternalServerError: "An error occurred while processing your request.",
	http.StatusUnauthorized:        "You are not authorized to perform this action.",
	http.StatusNotFound:            "The requested resource was not found.",
}

func errorPage(code int) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, domain.ErrorView{
			StatusCode: code,
			Message:    errorPages[code],
			RequestID:  c.Response().Header().Get(echo.HeaderXRequestID),
		})
	}
}
