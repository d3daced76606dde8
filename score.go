package seriesbench

import (
	"fmt"
	"math"
	"time"

	"github.com/seriesbench/seriesbench/models"
	"github.com/seriesbench/seriesbench/timedataset"
)

// Scores are the error statistics of a forecast against the held out
// segment, always computed over the full test segment with no trimming or
// weighting.
type Scores struct {
	MSE  float64 `json:"mean_squared_error"`
	RMSE float64 `json:"root_mean_squared_error"`
	MAE  float64 `json:"mean_absolute_error"`
}

// Score compares forecast point estimates against the test values. The
// forecast must cover the test index set: a timestamped forecast may be a
// superset from which the matching subset is selected, an unstamped one must
// match the test segment length positionally.
func Score(forecast *models.Forecast, test *timedataset.TimeDataset) (*Scores, error) {
	pred, err := alignPoints(forecast.T, forecast.Point, test)
	if err != nil {
		return nil, err
	}

	var mse, mae float64
	var n int
	for i := 0; i < test.Len(); i++ {
		if math.IsNaN(test.Y[i]) || math.IsNaN(pred[i]) {
			continue
		}
		d := test.Y[i] - pred[i]
		mse += d * d
		mae += math.Abs(d)
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("no comparable forecast/test pairs, %w", ErrIndexMismatch)
	}
	mse /= float64(n)
	mae /= float64(n)

	return &Scores{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  mae,
	}, nil
}

// Coverage returns the fraction of test values falling strictly between the
// forecast's lower and upper bounds, a calibration diagnostic for the
// uncertainty bands.
func Coverage(forecast *models.Forecast, test *timedataset.TimeDataset) (float64, error) {
	lower, err := alignPoints(forecast.T, forecast.Lower, test)
	if err != nil {
		return 0, err
	}
	upper, err := alignPoints(forecast.T, forecast.Upper, test)
	if err != nil {
		return 0, err
	}

	var n, inside int
	for i := 0; i < test.Len(); i++ {
		if math.IsNaN(test.Y[i]) || math.IsNaN(lower[i]) || math.IsNaN(upper[i]) {
			continue
		}
		n++
		if test.Y[i] > lower[i] && test.Y[i] < upper[i] {
			inside++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float64(inside) / float64(n), nil
}

// alignPoints maps one forecast value slice onto the test index set. A nil
// time slice means the forecast is positional and must match the test length
// exactly.
func alignPoints(t []time.Time, vals []float64, test *timedataset.TimeDataset) ([]float64, error) {
	if t == nil {
		if len(vals) != test.Len() {
			return nil, fmt.Errorf("forecast has %d steps for %d test samples, %w",
				len(vals), test.Len(), ErrIndexMismatch)
		}
		return vals, nil
	}
	if len(t) != len(vals) {
		return nil, fmt.Errorf("forecast has %d timestamps for %d values, %w",
			len(t), len(vals), ErrIndexMismatch)
	}

	byTime := make(map[int64]float64, len(t))
	for i, ti := range t {
		byTime[ti.UnixNano()] = vals[i]
	}

	out := make([]float64, test.Len())
	for i, ti := range test.T {
		v, ok := byTime[ti.UnixNano()]
		if !ok {
			return nil, fmt.Errorf("no forecast at %s, %w", ti, ErrIndexMismatch)
		}
		out[i] = v
	}
	return out, nil
}
