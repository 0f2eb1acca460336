package app

import "errors"

var (
	// ErrInvalidInput indicates a blank or malformed request field.
	ErrInvalidInput        = errors.New("invalid input")
	ErrProjectNotFound     = errors.New("project not found")
	ErrVersionNotFound     = errors.New("version not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrGenerationInFlight  = errors.New("generation already in progress")
	ErrGenerationEmpty     = errors.New("generation produced no code")
)
