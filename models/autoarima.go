package models

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/seriesbench/seriesbench/timedataset"
)

// AutoARIMAConfig bounds the order grid searched during automatic model
// selection. The candidate minimizing AICc wins.
type AutoARIMAConfig struct {
	MaxP int `json:"max_p"`
	MaxD int `json:"max_d"`
	MaxQ int `json:"max_q"`

	Constant bool `json:"constant"`
}

func NewDefaultAutoARIMAConfig() *AutoARIMAConfig {
	return &AutoARIMAConfig{MaxP: 5, MaxD: 2, MaxQ: 2}
}

func (c *AutoARIMAConfig) Validate() (*AutoARIMAConfig, error) {
	if c == nil {
		return NewDefaultAutoARIMAConfig(), nil
	}
	if c.MaxP < 0 || c.MaxD < 0 || c.MaxQ < 0 {
		return nil, fmt.Errorf("negative order bound (%d,%d,%d), %w", c.MaxP, c.MaxD, c.MaxQ, ErrKindMismatch)
	}
	if c.MaxP == 0 && c.MaxQ == 0 {
		return nil, fmt.Errorf("order grid is empty, %w", ErrKindMismatch)
	}
	out := *c
	return &out, nil
}

// AutoARIMA selects an ARIMA order by information criterion and delegates to
// the fixed order backend.
type AutoARIMA struct{}

func (AutoARIMA) Name() string { return "auto_arima" }

func (a AutoARIMA) Fit(ctx context.Context, train *timedataset.TimeDataset, cfg *Config) (Fitted, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.Kind != KindAutoARIMA {
		return nil, fmt.Errorf("%s config passed to auto arima backend, %w", cfg.Kind, ErrKindMismatch)
	}
	sub, err := cfg.AutoARIMA.Validate()
	if err != nil {
		return nil, err
	}
	if err := validateTrain(train); err != nil {
		return nil, err
	}

	obs := dropNaN(train.Y)

	var best *arimaModel
	bestAICc := math.Inf(1)
	for p := 0; p <= sub.MaxP; p++ {
		for d := 0; d <= sub.MaxD; d++ {
			for q := 0; q <= sub.MaxQ; q++ {
				if ctx.Err() != nil {
					return nil, fmt.Errorf("order search interrupted, %w", ErrFitFailure)
				}
				candidate := &ARIMAConfig{P: p, D: d, Q: q, Constant: sub.Constant && d == 0}
				if _, err := candidate.Validate(); err != nil {
					continue
				}
				m, err := fitARIMA(ctx, obs, candidate)
				if err != nil {
					// skip unfittable orders, the rest of the grid stands
					slog.Debug("skipping candidate order",
						"p", p, "d", d, "q", q, "error", err.Error())
					continue
				}
				if m.AICc() < bestAICc {
					bestAICc = m.AICc()
					best = m
				}
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no candidate order could be fit, %w", ErrFitFailure)
	}
	return best, nil
}
