package config

import (
	"errors"
	"fmt"
)

// ErrInvalidSettings indicates settings that parsed but failed validation.
var ErrInvalidSettings = errors.New("invalid settings")

// ParseError describes a settings file that could not be parsed.
type ParseError struct {
	// Path is the file that failed.
	Path string

	// Message is the parser's diagnostic.
	Message string

	// Err is the underlying parser error.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
