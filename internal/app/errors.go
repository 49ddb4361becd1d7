package app

import "fmt"

// DomainError is an error the HTTP layer can render directly: mapError
// passes Status/Code/Message/Details through to the JSON error body.
// Service methods return it for conditions the admin panel must show
// verbatim (validation failures, slug collisions, bad credentials).
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

// domainError is shorthand for the service layer's error returns.
func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
