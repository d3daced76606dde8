package seriesbench

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/seriesbench/seriesbench/models"
	"github.com/seriesbench/seriesbench/stats"
)

// SweepOptions controls a sensitivity sweep over a configuration grid.
type SweepOptions struct {
	// Quantiles are passed through to every forecast call.
	Quantiles [2]float64

	// Parallelism bounds the number of concurrent fits. Values below 1 run
	// the grid sequentially.
	Parallelism int

	// AbortOnFailure cancels the remaining entries after the first failure.
	// The default collects per entry failures so sensitivity curves stay
	// visualizable with isolated gaps.
	AbortOnFailure bool

	FitTimeout     time.Duration
	OutlierOptions *stats.OutlierOptions
}

func NewDefaultSweepOptions() *SweepOptions {
	return &SweepOptions{
		Quantiles:   models.DefaultQuantiles,
		Parallelism: 1,
	}
}

func (o *SweepOptions) Validate() (*SweepOptions, error) {
	if o == nil {
		return NewDefaultSweepOptions(), nil
	}
	out := *o
	if out.Quantiles == [2]float64{} {
		out.Quantiles = models.DefaultQuantiles
	}
	if err := models.ValidateQuantiles(out.Quantiles); err != nil {
		return nil, err
	}
	if out.Parallelism < 1 {
		out.Parallelism = 1
	}
	return &out, nil
}

// SweepResult is the outcome of one grid entry. Err is set when the entry
// failed; the other fields are then zero.
type SweepResult struct {
	Config   *models.Config   `json:"config"`
	Forecast *models.Forecast `json:"forecast,omitempty"`
	Scores   *Scores          `json:"scores,omitempty"`
	Coverage float64          `json:"coverage"`
	Err      error            `json:"-"`
}

// Sweep evaluates every configuration in the grid against the same split and
// returns one result per entry in grid order, regardless of completion
// order. Entries share no mutable state, so the grid may execute in
// parallel.
func Sweep(ctx context.Context, backend models.Backend, split Split, grid []*models.Config, opt *SweepOptions) ([]SweepResult, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, ErrEmptyGrid
	}

	evalOpt := &EvaluateOptions{
		Quantiles:      opt.Quantiles,
		FitTimeout:     opt.FitTimeout,
		OutlierOptions: opt.OutlierOptions,
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if opt.AbortOnFailure {
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	results := make([]SweepResult, len(grid))

	var firstErrMu sync.Mutex
	var firstErr error

	sem := make(chan struct{}, opt.Parallelism)
	var wg sync.WaitGroup
	for i, cfg := range grid {
		sem <- struct{}{}
		wg.Add(1)

		go func(i int, cfg *models.Config) {
			defer func() {
				<-sem
				wg.Done()
			}()

			ev, err := Evaluate(runCtx, backend, cfg, split, evalOpt)
			if err != nil {
				slog.Error("sweep entry failed",
					"backend", backend.Name(),
					"index", i,
					"error", err.Error())
				results[i] = SweepResult{Config: cfg, Err: err}

				if opt.AbortOnFailure {
					firstErrMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					firstErrMu.Unlock()
					cancel()
				}
				return
			}
			results[i] = SweepResult{
				Config:   ev.Config,
				Forecast: ev.Forecast,
				Scores:   ev.Scores,
				Coverage: ev.Coverage,
			}
		}(i, cfg)
	}
	wg.Wait()

	return results, firstErr
}
