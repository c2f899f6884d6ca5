package service

import (
	"errors"
	"strings"
)

// Kind is a machine-stable failure classification
type Kind string

const (
	KindValidation        Kind = "validation_failed"
	KindRateLimited       Kind = "rate_limited"
	KindNotFound          Kind = "not_found"
	KindTokenAcquisition  Kind = "token_acquisition_failed"
	KindProviderCall      Kind = "provider_call_failed"
	KindMalformedCallback Kind = "malformed_callback"
	KindInternal          Kind = "internal"
)

// Error is a classified gateway failure. Message is safe for clients;
// Err carries the internal cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies any error, defaulting to KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
