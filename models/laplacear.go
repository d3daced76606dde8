package models

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/seriesbench/seriesbench/timedataset"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LaplaceARConfig parameterizes the latent Gaussian AR(2) smoother. The
// observed series is modeled as a zero mean latent AR(2) field plus
// independent Gaussian noise; the forecast span is treated as missing
// responses and the joint latent posterior is solved exactly through its
// banded precision, which is the Gaussian likelihood case of the nested
// Laplace contract.
type LaplaceARConfig struct {
	// Phi1, Phi2 are the AR coefficients. Both zero estimates them from the
	// training segment by Yule-Walker.
	Phi1 float64 `json:"phi1"`
	Phi2 float64 `json:"phi2"`

	// NoiseShare is the fraction of the innovation variance assigned to the
	// observation noise, the rest drives the latent field.
	NoiseShare float64 `json:"noise_share"`

	// IncludeNoise widens the forecast bands by the observation noise.
	IncludeNoise bool `json:"include_noise"`
}

func NewDefaultLaplaceARConfig() *LaplaceARConfig {
	return &LaplaceARConfig{
		NoiseShare:   0.5,
		IncludeNoise: true,
	}
}

func (c *LaplaceARConfig) Validate() (*LaplaceARConfig, error) {
	if c == nil {
		return NewDefaultLaplaceARConfig(), nil
	}
	if c.NoiseShare < 0 || c.NoiseShare >= 1 {
		return nil, fmt.Errorf("noise share %g outside [0,1), %w", c.NoiseShare, ErrKindMismatch)
	}
	out := *c
	if out.NoiseShare == 0 {
		out.NoiseShare = 0.5
	}
	return &out, nil
}

// LaplaceAR is the latent Gaussian AR(2) backend.
type LaplaceAR struct{}

func (LaplaceAR) Name() string { return "laplace_ar" }

func (l LaplaceAR) Fit(ctx context.Context, train *timedataset.TimeDataset, cfg *Config) (Fitted, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.Kind != KindLaplaceAR {
		return nil, fmt.Errorf("%s config passed to laplace ar backend, %w", cfg.Kind, ErrKindMismatch)
	}
	sub, err := cfg.LaplaceAR.Validate()
	if err != nil {
		return nil, err
	}
	if err := validateTrain(train); err != nil {
		return nil, err
	}

	obs := dropNaN(train.Y)
	if len(obs) < 5 {
		return nil, ErrInsufficientData
	}

	m := &laplaceARModel{cfg: sub, trainT: append([]time.Time(nil), train.T...)}
	m.mean = stat.Mean(obs, nil)
	m.y = make([]float64, len(obs))
	for i, v := range obs {
		m.y[i] = v - m.mean
	}

	m.phi1, m.phi2 = sub.Phi1, sub.Phi2
	if m.phi1 == 0 && m.phi2 == 0 {
		phi, err := yuleWalker(m.y, 2)
		if err != nil {
			return nil, err
		}
		m.phi1, m.phi2 = phi[0], phi[1]
	}

	// split the one step innovation variance between observation noise and
	// the latent field
	var ssr float64
	n := 0
	for t := 2; t < len(m.y); t++ {
		e := m.y[t] - m.phi1*m.y[t-1] - m.phi2*m.y[t-2]
		ssr += e * e
		n++
	}
	if n == 0 || ssr == 0 {
		return nil, fmt.Errorf("degenerate innovation variance, %w", ErrFitFailure)
	}
	innovVar := ssr / float64(n)
	m.noiseVar = sub.NoiseShare * innovVar
	m.latentVar = innovVar - m.noiseVar

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("laplace ar fit interrupted, %w", ErrFitFailure)
	}
	return m, nil
}

type laplaceARModel struct {
	cfg    *LaplaceARConfig
	trainT []time.Time

	y    []float64 // centered training observations
	mean float64

	phi1, phi2 float64
	noiseVar   float64
	latentVar  float64
}

// solveField computes the posterior mean and marginal variances of the
// latent field over the training span extended by horizon steps.
func (m *laplaceARModel) solveField(horizon int) ([]float64, []float64, error) {
	n := len(m.y)
	total := n + horizon

	q := mat.NewSymDense(total, nil)
	b := make([]float64, total)

	// latent AR(2) precision: (1/tau^2) B'B with rows [-phi2, -phi1, 1]
	row := []float64{-m.phi2, -m.phi1, 1}
	invTau := 1 / m.latentVar
	for t := 2; t < total; t++ {
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				pos := t - 2
				q.SetSym(pos+i, pos+j, q.At(pos+i, pos+j)+invTau*row[i]*row[j])
			}
		}
	}

	// observation precision on the training indices only; the forecast span
	// stays missing
	invNoise := 1 / m.noiseVar
	for t := 0; t < n; t++ {
		q.SetSym(t, t, q.At(t, t)+invNoise)
		b[t] = invNoise * m.y[t]
	}
	for t := 0; t < total; t++ {
		q.SetSym(t, t, q.At(t, t)+1e-10)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(q); !ok {
		return nil, nil, fmt.Errorf("singular field precision, %w", ErrFitFailure)
	}

	var mu mat.VecDense
	if err := chol.SolveVecTo(&mu, mat.NewVecDense(total, b)); err != nil {
		return nil, nil, fmt.Errorf("field mean solve, %w", ErrFitFailure)
	}

	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, nil, fmt.Errorf("field covariance solve, %w", ErrFitFailure)
	}

	mean := make([]float64, total)
	variance := make([]float64, total)
	for t := 0; t < total; t++ {
		mean[t] = mu.AtVec(t) + m.mean
		variance[t] = cov.At(t, t)
	}
	return mean, variance, nil
}

func (m *laplaceARModel) Forecast(horizon int, quantiles [2]float64) (*Forecast, error) {
	if err := ValidateQuantiles(quantiles); err != nil {
		return nil, err
	}
	if horizon < 1 {
		return nil, ErrInvalidHorizon
	}

	mean, variance, err := m.solveField(horizon)
	if err != nil {
		return nil, err
	}

	n := len(m.y)
	zLo := normalQuantile(quantiles[0])
	zHi := normalQuantile(quantiles[1])

	point := make([]float64, horizon)
	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		v := variance[n+h]
		if m.cfg.IncludeNoise {
			v += m.noiseVar
		}
		sd := math.Sqrt(v)
		point[h] = mean[n+h]
		lower[h] = point[h] + zLo*sd
		upper[h] = point[h] + zHi*sd
	}

	return &Forecast{
		Point:     point,
		Lower:     lower,
		Upper:     upper,
		Quantiles: quantiles,
	}, nil
}

// Smoothed returns the latent posterior summaries over the training span,
// matching the full range output of the underlying formulation.
func (m *laplaceARModel) Smoothed(quantiles [2]float64) (*Forecast, error) {
	if err := ValidateQuantiles(quantiles); err != nil {
		return nil, err
	}

	mean, variance, err := m.solveField(1)
	if err != nil {
		return nil, err
	}

	n := len(m.y)
	zLo := normalQuantile(quantiles[0])
	zHi := normalQuantile(quantiles[1])

	point := make([]float64, n)
	lower := make([]float64, n)
	upper := make([]float64, n)
	for t := 0; t < n; t++ {
		sd := math.Sqrt(variance[t])
		point[t] = mean[t]
		lower[t] = point[t] + zLo*sd
		upper[t] = point[t] + zHi*sd
	}

	var ts []time.Time
	if len(m.trainT) == n {
		ts = append([]time.Time(nil), m.trainT...)
	}
	return &Forecast{
		T:         ts,
		Point:     point,
		Lower:     lower,
		Upper:     upper,
		Quantiles: quantiles,
	}, nil
}
