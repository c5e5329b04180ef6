package jsonapi

import (
	"fmt"
	"net/http"
	"strconv"
)

// ErrorBuilder builds Error values.
type ErrorBuilder struct {
	err Error
}

// NewError starts an error with the given status, code, and title.
func NewError(status int, code, title string) *ErrorBuilder {
	return &ErrorBuilder{
		err: Error{
			Status: strconv.Itoa(status),
			Code:   code,
			Title:  title,
		},
	}
}

// Detail sets the detail message.
func (b *ErrorBuilder) Detail(detail string) *ErrorBuilder {
	b.err.Detail = detail
	return b
}

// Detailf sets the detail message with formatting.
func (b *ErrorBuilder) Detailf(format string, args ...any) *ErrorBuilder {
	b.err.Detail = fmt.Sprintf(format, args...)
	return b
}

// Pointer sets the JSON pointer to the offending member.
func (b *ErrorBuilder) Pointer(pointer string) *ErrorBuilder {
	if b.err.Source == nil {
		b.err.Source = &ErrorSource{}
	}
	b.err.Source.Pointer = pointer
	return b
}

// Parameter names the query parameter that caused the error.
func (b *ErrorBuilder) Parameter(param string) *ErrorBuilder {
	if b.err.Source == nil {
		b.err.Source = &ErrorSource{}
	}
	b.err.Source.Parameter = param
	return b
}

// Meta adds metadata.
func (b *ErrorBuilder) Meta(key string, value any) *ErrorBuilder {
	if b.err.Meta == nil {
		b.err.Meta = make(Meta)
	}
	b.err.Meta[key] = value
	return b
}

// Build returns the error.
func (b *ErrorBuilder) Build() Error {
	return b.err
}

// StatusCode returns the HTTP status as an int.
func (e Error) StatusCode() int {
	code, _ := strconv.Atoi(e.Status)
	return code
}

// ErrBadRequest creates a 400 error.
func ErrBadRequest(detail string) Error {
	return NewError(http.StatusBadRequest, "bad_request", "Bad Request").Detail(detail).Build()
}

// ErrMissingParameter creates a 400 error for a required query parameter.
func ErrMissingParameter(param string) Error {
	return NewError(http.StatusBadRequest, "missing_parameter", "Missing Parameter").
		Detailf("Query parameter '%s' is required", param).
		Parameter(param).
		Build()
}

// ErrNotFoundWithID creates a 404 error naming the missing resource.
func ErrNotFoundWithID(resourceType, id string) Error {
	return NewError(http.StatusNotFound, "not_found", "Not Found").
		Detailf("The %s '%s' was not found", resourceType, id).
		Build()
}

// ErrConflict creates a 409 error.
func ErrConflict(detail string) Error {
	return NewError(http.StatusConflict, "conflict", "Conflict").Detail(detail).Build()
}

// ErrValidation creates a 422 error pointing at field.
func ErrValidation(field, message string) Error {
	return NewError(http.StatusUnprocessableEntity, "validation_error", "Validation Failed").
		Detail(message).
		Pointer("/data/attributes/" + field).
		Build()
}

// ErrInternal creates a 500 error.
func ErrInternal(detail string) Error {
	if detail == "" {
		detail = "An internal error occurred"
	}
	return NewError(http.StatusInternalServerError, "internal_error", "Internal Server Error").Detail(detail).Build()
}

// ErrServiceUnavailable creates a 503 error.
func ErrServiceUnavailable(detail string) Error {
	if detail == "" {
		detail = "Service temporarily unavailable"
	}
	return NewError(http.StatusServiceUnavailable, "service_unavailable", "Service Unavailable").Detail(detail).Build()
}
