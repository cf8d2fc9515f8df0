package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Account errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountUnverified  = errors.New("account not verified")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrStaleAccount       = errors.New("account modified concurrently")
)

// Verification errors
var (
	ErrAlreadyVerified  = errors.New("email already verified")
	ErrOTPNotRequested  = errors.New("otp not requested")
	ErrOTPInvalid       = errors.New("otp invalid")
	ErrOTPExpired       = errors.New("otp expired")
	ErrRateLimited      = errors.New("rate limited")
	ErrEmailSendFailure = errors.New("email send failed")
)

// Token errors
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Media errors
var (
	ErrMediaUnavailable = errors.New("media storage unavailable")
	ErrMediaInvalid     = errors.New("invalid media payload")
)

// ConflictError indica que un campo unico ya esta en uso.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already in use", e.Field)
}

// Message devuelve el texto que ve el cliente ("Email already in use").
func (e *ConflictError) Message() string {
	switch e.Field {
	case "email":
		return "Email already in use"
	case "username":
		return "Username already in use"
	default:
		return "Account already exists"
	}
}

// ValidationError lleva un mensaje por campo invalido.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
