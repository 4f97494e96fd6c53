package app

import "fmt"

// DomainError is the one error type the HTTP layer maps onto a client
// response. Status picks the HTTP code, Code is the machine-readable
// taxonomy value (VALIDATION_ERROR, UNAUTHORIZED, FORBIDDEN, CONFLICT,
// SERVER_ERROR), and Message is safe to show to clients. Wrapped storage
// errors never become DomainErrors; they surface as a generic 500.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
