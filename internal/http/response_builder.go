// Package http provides the JSON API server and its handlers.
//
// This file implements the builder used by every handler to write JSON bodies
// and the mapping from engine error kinds to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"budgetbook/internal/core"
)

// Error codes returned in the "error.code" member of failed responses.
const (
	CodeBadRequest   = "bad_request"
	CodeValidation   = "validation_failed"
	CodeReference    = "unknown_reference"
	CodeInUse        = "in_use"
	CodeNotFound     = "not_found"
	CodeStore        = "store_failure"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal_error"
	CodeNotSupported = "method_not_allowed"
)

// ErrorBody is the payload of every non-2xx response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Kind    string `json:"kind,omitempty"`
	ID      int64  `json:"id,omitempty"`
	// References counts the expenses blocking a delete.
	References int  `json:"references,omitempty"`
	Partial    bool `json:"partial,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
	hasBody    bool
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	b.hasBody = true
	return b
}

// StatusCode returns the status that Write will send.
func (b *ResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if !b.hasBody {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal_error","message":"encoding failed"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

// ErrorResponse creates an error response with the given code and message.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(errorEnvelope{Error: ErrorBody{Code: code, Message: message}})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, CodeNotSupported, "method not allowed").
		Header("Allow", allowedMethods)
}

// ErrorFrom maps an engine error to its response. Store failures are reported
// without their cause; the handler logs it.
func ErrorFrom(err error) *ResponseBuilder {
	var (
		ve *core.ValidationError
		re *core.ReferenceError
		ie *core.InUseError
		se *core.StoreError
	)
	switch {
	case errors.As(err, &ve):
		return NewResponse().Status(http.StatusUnprocessableEntity).JSON(errorEnvelope{Error: ErrorBody{
			Code:    CodeValidation,
			Message: ve.Err.Error(),
			Field:   ve.Field,
		}})
	case errors.As(err, &re):
		return NewResponse().Status(http.StatusUnprocessableEntity).JSON(errorEnvelope{Error: ErrorBody{
			Code:    CodeReference,
			Message: re.Error(),
			Kind:    string(re.Kind),
			ID:      re.ID,
		}})
	case errors.As(err, &ie):
		return NewResponse().Status(http.StatusConflict).JSON(errorEnvelope{Error: ErrorBody{
			Code:       CodeInUse,
			Message:    ie.Error(),
			Kind:       string(ie.Kind),
			ID:         ie.ID,
			References: ie.References,
		}})
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrInvalidFilter):
		return ErrorResponse(http.StatusUnprocessableEntity, CodeValidation, err.Error())
	case errors.As(err, &se):
		return NewResponse().Status(http.StatusInternalServerError).JSON(errorEnvelope{Error: ErrorBody{
			Code:    CodeStore,
			Message: "storage failure",
			Partial: se.Partial,
		}})
	default:
		return InternalServerError("internal error")
	}
}
