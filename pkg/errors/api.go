package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed API call from the caller's point of view.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindForbidden   Kind = "forbidden"
	KindRateLimited Kind = "rate_limited"
	KindNetwork     Kind = "network"
	KindServer      Kind = "server"
)

// DefaultAPIMessage is used when a failed response carries no error text.
const DefaultAPIMessage = "Request failed"

// APIError is the normalized form of every failed call made by the client.
// Status is zero for transport failures.
type APIError struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError builds an APIError for a non-2xx response.
func NewAPIError(status int, message string) *APIError {
	if message == "" {
		message = DefaultAPIMessage
	}
	return &APIError{
		Kind:    KindForStatus(status),
		Message: message,
		Status:  status,
	}
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error) *APIError {
	return &APIError{
		Kind:    KindNetwork,
		Message: "network error",
		Err:     err,
	}
}

// KindForStatus maps an HTTP status code to its error kind.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindServer
	}
}

// KindOf reports the kind of err, or the empty kind if err is not an APIError.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsUnauthorized reports whether err should tear down the session.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindAuth
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	return KindOf(err) == KindNetwork
}
