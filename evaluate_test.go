package seriesbench

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/seriesbench/seriesbench/models"
	"github.com/seriesbench/seriesbench/timedataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend forecasts a constant value, optionally with a fixed delay or
// failure, so pipeline behavior can be tested without a real fit.
type stubBackend struct {
	value  float64
	spread float64
	delay  time.Duration
	fitErr error
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Fit(ctx context.Context, train *timedataset.TimeDataset, cfg *models.Config) (models.Fitted, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fitErr != nil {
		return nil, s.fitErr
	}
	return &stubFitted{value: s.value, spread: s.spread}, nil
}

type stubFitted struct {
	value  float64
	spread float64
}

func (s *stubFitted) Forecast(horizon int, quantiles [2]float64) (*models.Forecast, error) {
	if horizon < 1 {
		return nil, models.ErrInvalidHorizon
	}
	point := make([]float64, horizon)
	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	for i := range point {
		point[i] = s.value
		lower[i] = s.value - s.spread
		upper[i] = s.value + s.spread
	}
	return &models.Forecast{Point: point, Lower: lower, Upper: upper, Quantiles: quantiles}, nil
}

func constSplit(t *testing.T, n, index int, val float64) Split {
	t.Helper()
	tSlice := timedataset.GenerateT(n, time.Hour, time.Now)
	td, err := timedataset.NewUnivariateDataset(tSlice, timedataset.GenerateConstY(n, val))
	require.Nil(t, err)
	split, err := SplitAt(td, index)
	require.Nil(t, err)
	return split
}

func TestEvaluateStub(t *testing.T) {
	split := constSplit(t, 30, 20, 7.0)
	backend := &stubBackend{value: 7.0, spread: 1.0}

	ev, err := Evaluate(context.Background(), backend, &models.Config{Kind: models.KindARIMA}, split, nil)
	require.Nil(t, err)

	assert.Equal(t, "stub", ev.Backend)
	assert.Zero(t, ev.Scores.MSE)
	assert.Zero(t, ev.Scores.MAE)
	assert.Equal(t, 1.0, ev.Coverage)

	// positional stub forecasts get stamped with the test grid
	require.Len(t, ev.Forecast.T, split.Test.Len())
	assert.Equal(t, split.Test.T[0], ev.Forecast.T[0])
}

func TestEvaluateInvalidQuantiles(t *testing.T) {
	split := constSplit(t, 10, 8, 1.0)
	backend := &stubBackend{value: 1.0}

	_, err := Evaluate(context.Background(), backend, &models.Config{Kind: models.KindARIMA}, split,
		&EvaluateOptions{Quantiles: [2]float64{0, 1}})
	assert.ErrorIs(t, err, ErrInvalidQuantile)
}

func TestEvaluateInvalidConfig(t *testing.T) {
	split := constSplit(t, 10, 8, 1.0)
	backend := &stubBackend{value: 1.0}

	_, err := Evaluate(context.Background(), backend, &models.Config{Kind: "nonsense"}, split, nil)
	assert.ErrorIs(t, err, models.ErrUnknownKind)
}

func TestEvaluateFitFailure(t *testing.T) {
	split := constSplit(t, 10, 8, 1.0)
	backend := &stubBackend{fitErr: errors.New("backend exploded")}

	_, err := Evaluate(context.Background(), backend, &models.Config{Kind: models.KindARIMA}, split, nil)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "fit stage")
}

func TestEvaluateFitTimeout(t *testing.T) {
	split := constSplit(t, 10, 8, 1.0)
	backend := &stubBackend{value: 1.0, delay: 2 * time.Second}

	_, err := Evaluate(context.Background(), backend, &models.Config{Kind: models.KindARIMA}, split,
		&EvaluateOptions{FitTimeout: 20 * time.Millisecond})
	assert.ErrorIs(t, err, ErrFitFailure)
}

func TestEvaluateLynxARIMA(t *testing.T) {
	lynx := timedataset.Lynx().Log()
	split, err := SplitAt(lynx, 80)
	require.Nil(t, err)

	cfg := &models.Config{
		Kind:  models.KindARIMA,
		ARIMA: &models.ARIMAConfig{P: 2, D: 1},
	}
	ev, err := Evaluate(context.Background(), models.ARIMA{}, cfg, split, nil)
	require.Nil(t, err)

	require.Len(t, ev.Forecast.Point, 34)
	assert.False(t, math.IsNaN(ev.Scores.MSE))
	assert.GreaterOrEqual(t, ev.Scores.MSE, 0.0)
	assert.GreaterOrEqual(t, ev.Scores.MAE, 0.0)
	assert.InDelta(t, ev.Scores.RMSE*ev.Scores.RMSE, ev.Scores.MSE, 1e-9*ev.Scores.MSE)
	assert.GreaterOrEqual(t, ev.Coverage, 0.0)
	assert.LessOrEqual(t, ev.Coverage, 1.0)
}

func TestEvaluateLynxGridBackend(t *testing.T) {
	lynx := timedataset.Lynx().Log()
	split, err := SplitAt(lynx, 80)
	require.Nil(t, err)

	cfg := &models.Config{
		Kind: models.KindSGP,
		SGP: &models.SGPConfig{
			PeriodSec:  (10 * 365.25 * 24 * time.Hour).Seconds(),
			BasisCount: 3,
			U:          1.0,
			Alpha:      0.01,
		},
	}
	ev, err := Evaluate(context.Background(), models.SGP{}, cfg, split, nil)
	require.Nil(t, err)

	// grid backends forecast on the exact test timestamps
	require.Len(t, ev.Forecast.T, 34)
	assert.Equal(t, split.Test.T, ev.Forecast.T)
	assert.False(t, math.IsNaN(ev.Scores.MSE))
}

func TestEvaluateSyntheticCycle(t *testing.T) {
	// run a simulated quasi-periodic count series through the full
	// pipeline on the log scale, mirroring the annual count workflow
	tSlice := timedataset.GenerateT(200, 24*time.Hour, time.Now)
	y := timedataset.GenerateCycleCounts(tSlice, 6.0, 1.5, (50 * 24 * time.Hour).Seconds(), 0.3)
	td, err := timedataset.NewUnivariateDataset(tSlice, y)
	require.Nil(t, err)

	split, err := SplitAt(td.Log(), 160)
	require.Nil(t, err)

	ev, err := Evaluate(context.Background(), models.LaplaceAR{}, &models.Config{Kind: models.KindLaplaceAR}, split, nil)
	require.Nil(t, err)

	require.Len(t, ev.Forecast.Point, 40)
	assert.False(t, math.IsNaN(ev.Scores.MSE))
	assert.GreaterOrEqual(t, ev.Scores.MSE, 0.0)
	assert.GreaterOrEqual(t, ev.Coverage, 0.0)
	assert.LessOrEqual(t, ev.Coverage, 1.0)
}

func TestEvaluateOptionsValidate(t *testing.T) {
	testData := map[string]struct {
		opt      *EvaluateOptions
		err      error
		expected [2]float64
	}{
		"nil defaults": {
			expected: models.DefaultQuantiles,
		},
		"zero quantiles default": {
			opt:      &EvaluateOptions{},
			expected: models.DefaultQuantiles,
		},
		"custom quantiles": {
			opt:      &EvaluateOptions{Quantiles: [2]float64{0.1, 0.9}},
			expected: [2]float64{0.1, 0.9},
		},
		"reversed quantiles": {
			opt: &EvaluateOptions{Quantiles: [2]float64{0.9, 0.1}},
			err: ErrInvalidQuantile,
		},
		"negative timeout": {
			opt: &EvaluateOptions{FitTimeout: -time.Second},
			err: ErrFitFailure,
		},
	}

	for name, tc := range testData {
		t.Run(name, func(t *testing.T) {
			out, err := tc.opt.Validate()
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tc.expected, out.Quantiles)
		})
	}
}
