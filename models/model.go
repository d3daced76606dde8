// Package models provides the model adapter layer of the evaluation harness.
// Each supported backend fits a time series model to a training segment and
// produces point and interval forecasts through the same two operation
// contract regardless of its native machinery.
package models

import (
	"context"
	"fmt"
	"time"

	"github.com/seriesbench/seriesbench/timedataset"
)

// DefaultQuantiles is the nominal 95% interval pair used when a caller does
// not override the forecast quantiles.
var DefaultQuantiles = [2]float64{0.025, 0.975}

// Backend fits a model configuration to a training segment. Implementations
// must not retain or mutate the training dataset after Fit returns. A fit
// failure is non-retryable for a given configuration.
type Backend interface {
	Name() string
	Fit(ctx context.Context, train *timedataset.TimeDataset, cfg *Config) (Fitted, error)
}

// Fitted is the immutable result of a single Fit call. Forecast may be called
// any number of times with different horizons and quantile pairs.
type Fitted interface {
	Forecast(horizon int, quantiles [2]float64) (*Forecast, error)
}

// GridForecaster is implemented by backends that forecast as a continuous
// function of the time covariate rather than a fixed step count.
type GridForecaster interface {
	ForecastAt(t []time.Time, quantiles [2]float64) (*Forecast, error)
}

// Forecast holds per index point estimates and quantile bounds. T is nil for
// purely horizon-based backends whose steps align positionally with the
// held-out segment; grid-capable backends stamp each index with its time.
type Forecast struct {
	T         []time.Time `json:"time,omitempty"`
	Point     []float64   `json:"point"`
	Lower     []float64   `json:"lower"`
	Upper     []float64   `json:"upper"`
	Quantiles [2]float64  `json:"quantiles"`
}

// Kind identifies a backend family.
type Kind string

const (
	KindSGP        Kind = "sgp"
	KindARIMA      Kind = "arima"
	KindAutoARIMA  Kind = "auto_arima"
	KindBayesARIMA Kind = "bayes_arima"
	KindLaplaceAR  Kind = "laplace_ar"
)

// Config selects a backend family and carries its parameters. Exactly the
// sub-configuration matching Kind may be set; a nil sub-configuration falls
// back to that family's defaults. Configs are value objects and must not be
// mutated after being passed to Fit.
type Config struct {
	Kind Kind `json:"kind"`

	SGP        *SGPConfig        `json:"sgp,omitempty"`
	ARIMA      *ARIMAConfig      `json:"arima,omitempty"`
	AutoARIMA  *AutoARIMAConfig  `json:"auto_arima,omitempty"`
	BayesARIMA *BayesARIMAConfig `json:"bayes_arima,omitempty"`
	LaplaceAR  *LaplaceARConfig  `json:"laplace_ar,omitempty"`
}

// Validate checks the configuration and returns a copy with defaults filled
// in. Unknown kinds and sub-configurations that do not match Kind are
// rejected here rather than at fit time.
func (c *Config) Validate() (*Config, error) {
	if c == nil {
		return nil, ErrNilConfig
	}
	out := *c

	if err := c.checkExclusive(); err != nil {
		return nil, err
	}

	switch c.Kind {
	case KindSGP:
		sub, err := c.SGP.Validate()
		if err != nil {
			return nil, err
		}
		out.SGP = sub
	case KindARIMA:
		sub, err := c.ARIMA.Validate()
		if err != nil {
			return nil, err
		}
		out.ARIMA = sub
	case KindAutoARIMA:
		sub, err := c.AutoARIMA.Validate()
		if err != nil {
			return nil, err
		}
		out.AutoARIMA = sub
	case KindBayesARIMA:
		sub, err := c.BayesARIMA.Validate()
		if err != nil {
			return nil, err
		}
		out.BayesARIMA = sub
	case KindLaplaceAR:
		sub, err := c.LaplaceAR.Validate()
		if err != nil {
			return nil, err
		}
		out.LaplaceAR = sub
	default:
		return nil, fmt.Errorf("kind %q, %w", c.Kind, ErrUnknownKind)
	}
	return &out, nil
}

func (c *Config) checkExclusive() error {
	set := map[Kind]bool{
		KindSGP:        c.SGP != nil,
		KindARIMA:      c.ARIMA != nil,
		KindAutoARIMA:  c.AutoARIMA != nil,
		KindBayesARIMA: c.BayesARIMA != nil,
		KindLaplaceAR:  c.LaplaceAR != nil,
	}
	for kind, isSet := range set {
		if isSet && kind != c.Kind {
			return fmt.Errorf("%s parameters set on a %s config, %w", kind, c.Kind, ErrKindMismatch)
		}
	}
	return nil
}

// ForConfig returns the backend implementation matching the configuration's
// kind.
func ForConfig(cfg *Config) (Backend, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	switch cfg.Kind {
	case KindSGP:
		return SGP{}, nil
	case KindARIMA:
		return ARIMA{}, nil
	case KindAutoARIMA:
		return AutoARIMA{}, nil
	case KindBayesARIMA:
		return BayesARIMA{}, nil
	case KindLaplaceAR:
		return LaplaceAR{}, nil
	default:
		return nil, fmt.Errorf("kind %q, %w", cfg.Kind, ErrUnknownKind)
	}
}

// ValidateQuantiles rejects quantile pairs outside the open unit interval or
// out of order.
func ValidateQuantiles(q [2]float64) error {
	if q[0] <= 0 || q[0] >= 1 || q[1] <= 0 || q[1] >= 1 {
		return fmt.Errorf("quantiles (%g, %g) outside (0, 1), %w", q[0], q[1], ErrInvalidQuantile)
	}
	if q[0] >= q[1] {
		return fmt.Errorf("lower quantile %g is not below upper quantile %g, %w", q[0], q[1], ErrInvalidQuantile)
	}
	return nil
}

func validateTrain(train *timedataset.TimeDataset) error {
	if train.Len() < 2 {
		return ErrInsufficientData
	}
	return nil
}
