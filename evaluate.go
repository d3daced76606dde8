package seriesbench

import (
	"context"
	"fmt"
	"time"

	"github.com/seriesbench/seriesbench/models"
	"github.com/seriesbench/seriesbench/stats"
	"github.com/seriesbench/seriesbench/timedataset"
)

// EvaluateOptions controls a single model evaluation run.
type EvaluateOptions struct {
	// Quantiles are the forecast interval bounds requested from the backend.
	Quantiles [2]float64

	// FitTimeout bounds a single fit call. Zero disables the bound. A timed
	// out fit surfaces as a fit failure so one pathological configuration
	// cannot stall a sweep.
	FitTimeout time.Duration

	// OutlierOptions enables fence clipping passes over the training segment
	// before fitting. Nil skips outlier handling.
	OutlierOptions *stats.OutlierOptions
}

func NewDefaultEvaluateOptions() *EvaluateOptions {
	return &EvaluateOptions{
		Quantiles: models.DefaultQuantiles,
	}
}

func (o *EvaluateOptions) Validate() (*EvaluateOptions, error) {
	if o == nil {
		return NewDefaultEvaluateOptions(), nil
	}
	out := *o
	if out.Quantiles == [2]float64{} {
		out.Quantiles = models.DefaultQuantiles
	}
	if err := models.ValidateQuantiles(out.Quantiles); err != nil {
		return nil, err
	}
	if out.FitTimeout < 0 {
		return nil, fmt.Errorf("negative fit timeout %s, %w", out.FitTimeout, ErrFitFailure)
	}
	return &out, nil
}

// Evaluation is the outcome of running one configuration through the
// fit, forecast, and score pipeline.
type Evaluation struct {
	Backend  string           `json:"backend"`
	Config   *models.Config   `json:"config"`
	Forecast *models.Forecast `json:"forecast"`
	Scores   *Scores          `json:"scores"`
	Coverage float64          `json:"coverage"`
}

// Evaluate fits one configuration to the training segment, forecasts the
// held out segment, and scores the result. All candidate models in a run
// must share the same value scale for their scores to be comparable.
func Evaluate(ctx context.Context, backend models.Backend, cfg *models.Config, split Split, opt *EvaluateOptions) (*Evaluation, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	cfg, err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("%s config stage, %w", backend.Name(), err)
	}

	train := split.Train.Copy()
	if opt.OutlierOptions != nil {
		oo := opt.OutlierOptions
		for pass := 0; pass < oo.NumPasses; pass++ {
			if stats.ClipOutliers(train.Y, oo.LowerPercentile, oo.UpperPercentile, oo.TukeyFactor) == 0 {
				break
			}
		}
	}

	fitted, err := fitWithTimeout(ctx, backend, cfg, train, opt.FitTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s fit stage, %w", backend.Name(), err)
	}

	forecast, err := forecastTest(fitted, split, opt.Quantiles)
	if err != nil {
		return nil, fmt.Errorf("%s forecast stage, %w", backend.Name(), err)
	}

	scores, err := Score(forecast, split.Test)
	if err != nil {
		return nil, fmt.Errorf("%s score stage, %w", backend.Name(), err)
	}
	coverage, err := Coverage(forecast, split.Test)
	if err != nil {
		return nil, fmt.Errorf("%s score stage, %w", backend.Name(), err)
	}

	return &Evaluation{
		Backend:  backend.Name(),
		Config:   cfg,
		Forecast: forecast,
		Scores:   scores,
		Coverage: coverage,
	}, nil
}

// fitWithTimeout runs the backend fit, converting a deadline overrun into a
// fit failure. The backend goroutine is left to wind down on its own via the
// cancelled context.
func fitWithTimeout(ctx context.Context, backend models.Backend, cfg *models.Config, train *timedataset.TimeDataset, timeout time.Duration) (models.Fitted, error) {
	fitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type fitResult struct {
		fitted models.Fitted
		err    error
	}
	done := make(chan fitResult, 1)
	go func() {
		fitted, err := backend.Fit(fitCtx, train, cfg)
		done <- fitResult{fitted, err}
	}()

	select {
	case res := <-done:
		return res.fitted, res.err
	case <-fitCtx.Done():
		return nil, fmt.Errorf("fit cancelled (%s), %w", fitCtx.Err(), models.ErrFitFailure)
	}
}

// forecastTest produces a forecast covering the held out segment, using the
// covariate grid directly when the backend forecasts as a continuous
// function and stamping positional forecasts with the test times otherwise.
func forecastTest(fitted models.Fitted, split Split, quantiles [2]float64) (*models.Forecast, error) {
	if gf, ok := fitted.(models.GridForecaster); ok {
		return gf.ForecastAt(split.Test.T, quantiles)
	}

	forecast, err := fitted.Forecast(split.Test.Len(), quantiles)
	if err != nil {
		return nil, err
	}
	if forecast.T == nil && len(forecast.Point) == split.Test.Len() {
		forecast.T = append([]time.Time(nil), split.Test.T...)
	}
	return forecast, nil
}
