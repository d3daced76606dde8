// Package seriesbench evaluates heterogeneous time series forecasting models
// on identical terms: one train/test split, one fit and forecast contract,
// and one set of error statistics, with a sweep driver for prior sensitivity
// studies.
package seriesbench

import (
	"errors"

	"github.com/seriesbench/seriesbench/models"
)

var (
	ErrInvalidSplit  = errors.New("split index outside valid range")
	ErrIndexMismatch = errors.New("forecast does not cover the test index set")
	ErrEmptyGrid     = errors.New("no configurations in sweep grid")

	// re-exported for callers matching failures from the adapter layer
	ErrFitFailure      = models.ErrFitFailure
	ErrInvalidQuantile = models.ErrInvalidQuantile
)
