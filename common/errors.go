package common

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIError is the error type every handler and service-layer call returns
// for conditions the client should see. It carries enough structure to
// render the {detail, code?, fields?} envelope without the handler having
// to know about HTTP at all.
type APIError struct {
	HTTPStatus int
	Code       string
	Detail     string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	return e.Detail
}

// NewAPIError builds an APIError with no field-level detail.
func NewAPIError(status int, code, detail string) *APIError {
	return &APIError{HTTPStatus: status, Code: code, Detail: detail}
}

// WithFields attaches per-field validation reasons to an existing error.
func (e *APIError) WithFields(fields map[string]string) *APIError {
	e.Fields = fields
	return e
}

// Constructors for the error taxonomy. Detail is the human-readable
// message surfaced to the client; code is a short machine-stable token.
func ErrValidation(detail string) *APIError {
	return NewAPIError(http.StatusBadRequest, "validation_error", detail)
}

func ErrAuthentication(detail string) *APIError {
	return NewAPIError(http.StatusUnauthorized, "authentication_error", detail)
}

func ErrAuthorization(detail string) *APIError {
	return NewAPIError(http.StatusForbidden, "authorization_error", detail)
}

func ErrNotFound(detail string) *APIError {
	return NewAPIError(http.StatusNotFound, "not_found", detail)
}

func ErrConflict(detail string) *APIError {
	return NewAPIError(http.StatusConflict, "conflict", detail)
}

func ErrRateLimited(detail string) *APIError {
	return NewAPIError(http.StatusTooManyRequests, "rate_limited", detail)
}

func ErrUpstreamTimeout(detail string) *APIError {
	return NewAPIError(http.StatusGatewayTimeout, "upstream_timeout", detail)
}

func ErrUpstreamFailure(detail string) *APIError {
	return NewAPIError(http.StatusBadGateway, "upstream_failure", detail)
}

func ErrInternal(detail string) *APIError {
	return NewAPIError(http.StatusInternalServerError, "internal_error", detail)
}

// errorEnvelope is the wire shape of every error response.
type errorEnvelope struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// HTTPErrorHandler renders APIError, echo.HTTPError and unclassified errors
// into the {detail, code?, fields?} envelope. Unanticipated errors are
// reported as 500 with the detail suppressed unless debug is enabled, so
// internal failure information never leaks to clients in production.
func HTTPErrorHandler(debug bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var echoErr *echo.HTTPError

		env := errorEnvelope{}
		status := http.StatusInternalServerError

		switch {
		case errors.As(err, &apiErr):
			status = apiErr.HTTPStatus
			env.Detail = apiErr.Detail
			env.Code = apiErr.Code
			env.Fields = apiErr.Fields
		case errors.As(err, &echoErr):
			status = echoErr.Code
			if msg, ok := echoErr.Message.(string); ok {
				env.Detail = msg
			} else {
				env.Detail = http.StatusText(status)
			}
		default:
			if debug {
				env.Detail = err.Error()
			} else {
				env.Detail = "an internal error occurred"
			}
		}

		if env.Detail == "" {
			env.Detail = http.StatusText(status)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, env)
		}
		if writeErr != nil {
			Logger.WithError(writeErr).Error("failed to write error response")
		}
	}
}
