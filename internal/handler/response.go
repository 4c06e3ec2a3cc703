package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-auth/internal/apperr"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    Meta       `json:"meta"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

func meta(c echo.Context) Meta {
	return Meta{
		Timestamp: time.Now().UTC(),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}
}

// OK writes a success envelope.
func OK(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data, Meta: meta(c)})
}

// Fail writes an error envelope for err.
func Fail(c echo.Context, err error) error {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, Envelope{Success: false, Error: body, Meta: meta(c)})
}

// HTTPErrorHandler renders every error returned by handlers and middleware
// in the envelope format.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		status, _ := classify(err)
		_ = c.NoContent(status)
		return
	}
	if ferr := Fail(c, err); ferr != nil {
		c.Logger().Errorf("writing error response: %v", ferr)
	}
}

func classify(err error) (int, *ErrorBody) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return apperr.ErrValidation.Status, &ErrorBody{
			Code:    apperr.ErrValidation.Code,
			Message: apperr.ErrValidation.Message,
			Details: ve.Fields,
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, &ErrorBody{Code: httpCode(he.Code), Message: http.StatusText(he.Code)}
	}

	ae := apperr.From(err)
	body := &ErrorBody{Code: ae.Code, Message: ae.Message}
	if ae == apperr.ErrValidation && err != ae {
		body.Details = err.Error()
	}
	return ae.Status, body
}

func httpCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusUnsupportedMediaType:
		return "UNSUPPORTED_MEDIA_TYPE"
	case http.StatusBadRequest:
		return apperr.ErrValidation.Code
	case http.StatusUnauthorized:
		return apperr.ErrUnauthorized.Code
	case http.StatusForbidden:
		return apperr.ErrForbidden.Code
	case http.StatusTooManyRequests:
		return apperr.ErrRateLimited.Code
	}
	return apperr.ErrInternal.Code
}
