package tikhub

import (
	"errors"
	"fmt"
)

// ErrorType represents the class of an API error
type ErrorType string

const (
	ErrorTypeNetwork  ErrorType = "network"
	ErrorTypeQuota    ErrorType = "quota"
	ErrorTypeUpstream ErrorType = "upstream"
	ErrorTypeParsing  ErrorType = "parsing"
)

// Error represents a TikHub API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("tikhub %s error (code %d): %s", e.Type, e.Code, e.Message)
}

// IsQuotaExhausted reports whether err indicates that every credential in the
// pool has run out of quota.
func IsQuotaExhausted(err error) bool {
	if errors.Is(err, ErrCredentialsExhausted) {
		return true
	}
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeQuota
}
