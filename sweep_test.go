package seriesbench

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/seriesbench/seriesbench/models"
	"github.com/seriesbench/seriesbench/timedataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridStub forecasts the AR order of the config it was fit with, so result
// ordering is observable from the forecasts.
type gridStub struct {
	failOrder int
}

func (g *gridStub) Name() string { return "grid-stub" }

func (g *gridStub) Fit(ctx context.Context, train *timedataset.TimeDataset, cfg *models.Config) (models.Fitted, error) {
	if cfg.ARIMA.P == g.failOrder {
		return nil, fmt.Errorf("order %d rejected, %w", g.failOrder, models.ErrFitFailure)
	}
	return &stubFitted{value: float64(cfg.ARIMA.P), spread: 1000}, nil
}

func orderGrid(k int) []*models.Config {
	grid := make([]*models.Config, 0, k)
	for i := 0; i < k; i++ {
		grid = append(grid, &models.Config{
			Kind:  models.KindARIMA,
			ARIMA: &models.ARIMAConfig{P: i + 1},
		})
	}
	return grid
}

func TestSweepEmptyGrid(t *testing.T) {
	split := constSplit(t, 20, 15, 1.0)
	_, err := Sweep(context.Background(), &gridStub{}, split, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyGrid)
}

func TestSweepPreservesGridOrder(t *testing.T) {
	split := constSplit(t, 20, 15, 1.0)
	grid := orderGrid(10)

	results, err := Sweep(context.Background(), &gridStub{}, split, grid, &SweepOptions{
		Parallelism: 4,
	})
	require.Nil(t, err)
	require.Len(t, results, 10)

	for i, res := range results {
		require.Nil(t, res.Err, "entry %d", i)
		assert.Equal(t, grid[i], res.Config)
		assert.Equal(t, float64(i+1), res.Forecast.Point[0])
	}
}

func TestSweepIsolatesEntryFailures(t *testing.T) {
	split := constSplit(t, 20, 15, 1.0)
	grid := orderGrid(6)

	results, err := Sweep(context.Background(), &gridStub{failOrder: 3}, split, grid, nil)
	require.Nil(t, err)
	require.Len(t, results, 6)

	for i, res := range results {
		if i == 2 {
			assert.ErrorIs(t, res.Err, ErrFitFailure)
			assert.Nil(t, res.Forecast)
			assert.Equal(t, grid[i], res.Config)
			continue
		}
		assert.Nil(t, res.Err, "entry %d", i)
		assert.NotNil(t, res.Forecast)
	}
}

func TestSweepAbortOnFailure(t *testing.T) {
	split := constSplit(t, 20, 15, 1.0)
	grid := orderGrid(6)

	results, err := Sweep(context.Background(), &gridStub{failOrder: 1}, split, grid, &SweepOptions{
		AbortOnFailure: true,
	})
	assert.ErrorIs(t, err, ErrFitFailure)
	require.Len(t, results, 6)
	assert.ErrorIs(t, results[0].Err, ErrFitFailure)
}

func TestSweepSGPPriorSensitivity(t *testing.T) {
	lynx := timedataset.Lynx().Log()
	split, err := SplitAt(lynx, 80)
	require.Nil(t, err)

	period := (10 * 365.25 * 24 * time.Hour).Seconds()
	grid := make([]*models.Config, 0, 10)
	for i := 1; i <= 10; i++ {
		grid = append(grid, &models.Config{
			Kind: models.KindSGP,
			SGP: &models.SGPConfig{
				PeriodSec:  period,
				BasisCount: 3,
				U:          float64(i) / 10,
				Alpha:      0.01,
			},
		})
	}

	results, err := Sweep(context.Background(), models.SGP{}, split, grid, &SweepOptions{
		Parallelism: 4,
	})
	require.Nil(t, err)
	require.Len(t, results, 10)

	for i, res := range results {
		require.Nil(t, res.Err, "u=%g", grid[i].SGP.U)
		assert.Equal(t, grid[i].SGP.U, res.Config.SGP.U)
		assert.False(t, math.IsNaN(res.Scores.MSE))
		assert.GreaterOrEqual(t, res.Scores.MSE, 0.0)
		assert.GreaterOrEqual(t, res.Coverage, 0.0)
		assert.LessOrEqual(t, res.Coverage, 1.0)
	}
}

func TestSweepOptionsValidate(t *testing.T) {
	testData := map[string]struct {
		opt         *SweepOptions
		err         error
		parallelism int
	}{
		"nil defaults": {
			parallelism: 1,
		},
		"zero parallelism clamps": {
			opt:         &SweepOptions{},
			parallelism: 1,
		},
		"explicit parallelism": {
			opt:         &SweepOptions{Parallelism: 8},
			parallelism: 8,
		},
		"bad quantiles": {
			opt: &SweepOptions{Quantiles: [2]float64{1, 2}},
			err: ErrInvalidQuantile,
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
			assert.Equal(t, tc.parallelism, out.Parallelism)
		})
	}
}
