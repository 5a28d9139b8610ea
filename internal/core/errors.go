package core

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state transition")
	ErrCalculation  = errors.New("premium calculation failed")
	ErrUnauthorized = errors.New("unauthorized")
)
