package models

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoARIMAConfigValidate(t *testing.T) {
	testData := map[string]struct {
		cfg      *AutoARIMAConfig
		err      error
		expected *AutoARIMAConfig
	}{
		"nil defaults": {
			expected: NewDefaultAutoARIMAConfig(),
		},
		"negative bound": {
			cfg: &AutoARIMAConfig{MaxP: -1},
			err: ErrKindMismatch,
		},
		"empty grid": {
			cfg: &AutoARIMAConfig{MaxD: 2},
			err: ErrKindMismatch,
		},
		"valid": {
			cfg:      &AutoARIMAConfig{MaxP: 3, MaxD: 1, MaxQ: 1},
			expected: &AutoARIMAConfig{MaxP: 3, MaxD: 1, MaxQ: 1},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			out, err := td.cfg.Validate()
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, out)
		})
	}
}

func TestAutoARIMASelectsAROrder(t *testing.T) {
	// AR(2) data; the search should land on a model that forecasts it
	y := generateAR1(500, 0, 0.7, 0.3, 21)
	td := datasetFrom(y)

	cfg := &Config{Kind: KindAutoARIMA, AutoARIMA: &AutoARIMAConfig{MaxP: 3, MaxD: 1, MaxQ: 1}}
	fitted, err := AutoARIMA{}.Fit(context.Background(), td, cfg)
	require.Nil(t, err)

	best := fitted.(*arimaModel)
	assert.False(t, math.IsInf(best.AICc(), 0))
	assert.False(t, math.IsNaN(best.AICc()))

	fc, err := fitted.Forecast(12, DefaultQuantiles)
	require.Nil(t, err)
	require.Len(t, fc.Point, 12)
	for i := range fc.Point {
		assert.False(t, math.IsNaN(fc.Point[i]))
		assert.LessOrEqual(t, fc.Lower[i], fc.Upper[i])
	}
}

func TestAutoARIMAGridWithDifferencing(t *testing.T) {
	// a grid with d > 0 must survive its (0,d,0) random walk candidates
	y := generateAR1(200, 0, 0.5, 0.2, 31)
	td := datasetFrom(y)

	cfg := &Config{Kind: KindAutoARIMA, AutoARIMA: &AutoARIMAConfig{MaxP: 1, MaxD: 2, MaxQ: 0}}
	fitted, err := AutoARIMA{}.Fit(context.Background(), td, cfg)
	require.Nil(t, err)

	fc, err := fitted.Forecast(5, DefaultQuantiles)
	require.Nil(t, err)
	require.Len(t, fc.Point, 5)
	for i := range fc.Point {
		assert.False(t, math.IsNaN(fc.Point[i]))
	}
}

func TestAutoARIMAContextCancel(t *testing.T) {
	y := generateAR1(200, 0, 0.5, 0.2, 9)
	td := datasetFrom(y)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AutoARIMA{}.Fit(ctx, td, &Config{Kind: KindAutoARIMA})
	assert.ErrorIs(t, err, ErrFitFailure)
}

func TestAutoARIMAKindMismatch(t *testing.T) {
	td := datasetFrom(generateAR1(50, 0, 0.5, 0.1, 2))
	_, err := AutoARIMA{}.Fit(context.Background(), td, &Config{Kind: KindARIMA})
	assert.ErrorIs(t, err, ErrKindMismatch)
}
