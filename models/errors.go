package models

import (
	"errors"
)

var (
	ErrNilConfig        = errors.New("no model configuration")
	ErrUnknownKind      = errors.New("unknown model kind")
	ErrKindMismatch     = errors.New("configuration parameters do not match kind")
	ErrInvalidQuantile  = errors.New("quantile outside the open unit interval")
	ErrFitFailure       = errors.New("model fit failure")
	ErrInsufficientData = errors.New("insufficient training data")
	ErrInvalidHorizon   = errors.New("forecast horizon must be positive")
)
