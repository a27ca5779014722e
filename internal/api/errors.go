package api

import (
	"errors"
	"fmt"
)

// TransportError covers failures where no well-formed envelope came back:
// the network was unreachable, the request was cancelled, or the body was
// not JSON.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServiceError is a well-formed response whose envelope was not successful.
// Error returns the server's message verbatim so it can be shown as is.
type ServiceError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

const genericFailure = "Something went wrong. Please try again."

// UserMessage turns an error from this package into notification text. A
// server-provided message wins; otherwise fallback is used, or a generic
// sentence when fallback is empty.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var svc *ServiceError
	if errors.As(err, &svc) && svc.Message != "" {
		return svc.Message
	}
	if fallback != "" {
		return fallback
	}
	return genericFailure
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsService(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
