package providers

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Errors adapters wrap so callers can classify failures.
var (
	ErrRateLimited = errors.New("provider rate limited")
	ErrUnavailable = errors.New("provider unavailable")
)

// Class is the coarse category of a provider failure.
type Class int

const (
	ClassUnknown Class = iota
	ClassRateLimited
	ClassUnavailable
)

func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// StatusError is returned by HTTP adapters for non-2xx responses.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return e.Provider + ": " + http.StatusText(e.StatusCode)
	}
	return e.Provider + ": " + http.StatusText(e.StatusCode) + ": " + e.Body
}

// Classify maps an adapter error to a Class.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	switch {
	case errors.Is(err, ErrRateLimited):
		return ClassRateLimited
	case errors.Is(err, ErrUnavailable):
		return ClassUnavailable
	}

	var se *StatusError
	if errors.As(err, &se) {
		return classifyHTTP(se.StatusCode)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classifyHTTP(gerr.Code)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return ClassRateLimited
		case codes.Unavailable:
			return ClassUnavailable
		}
	}
	return ClassUnknown
}

func classifyHTTP(code int) Class {
	switch code {
	case http.StatusTooManyRequests:
		return ClassRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ClassUnavailable
	}
	return ClassUnknown
}
