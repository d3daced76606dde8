package models

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"bitbucket.org/dtolpin/infergo/dist"
	"bitbucket.org/dtolpin/infergo/infer"
	"github.com/seriesbench/seriesbench/timedataset"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// BayesARIMAConfig parameterizes the MCMC sampled Bayesian ARIMA backend:
// d-fold differencing followed by a Bayesian AR(p) with Normal priors on the
// constant and lag coefficients and a Normal prior on the log noise scale,
// sampled with Hamiltonian Monte Carlo.
type BayesARIMAConfig struct {
	P int `json:"p"`
	D int `json:"d"`

	// Samples kept after Burn discarded draws.
	Samples int `json:"samples"`
	Burn    int `json:"burn"`

	// StepSize and Leapfrog are the HMC integrator controls.
	StepSize float64 `json:"step_size"`
	Leapfrog int     `json:"leapfrog"`

	Seed uint64 `json:"seed"`
}

func NewDefaultBayesARIMAConfig() *BayesARIMAConfig {
	return &BayesARIMAConfig{
		P:        2,
		D:        1,
		Samples:  1000,
		Burn:     500,
		StepSize: 0.02,
		Leapfrog: 10,
		Seed:     1,
	}
}

func (c *BayesARIMAConfig) Validate() (*BayesARIMAConfig, error) {
	if c == nil {
		return NewDefaultBayesARIMAConfig(), nil
	}
	if c.P < 1 || c.D < 0 {
		return nil, fmt.Errorf("order (%d,%d), %w", c.P, c.D, ErrKindMismatch)
	}
	if c.Samples < 1 || c.Burn < 0 {
		return nil, fmt.Errorf("sample counts (%d,%d), %w", c.Samples, c.Burn, ErrKindMismatch)
	}
	out := *c
	if out.StepSize == 0 {
		out.StepSize = 0.02
	}
	if out.Leapfrog == 0 {
		out.Leapfrog = 10
	}
	if out.Seed == 0 {
		out.Seed = 1
	}
	return &out, nil
}

// BayesARIMA is the MCMC Bayesian backend.
type BayesARIMA struct{}

func (BayesARIMA) Name() string { return "bayes_arima" }

// arPosterior is the log posterior of the differenced AR model. The
// parameter vector is [c, phi_1..phi_p, log sigma]. The gradient is computed
// analytically in the same pass, so no tape machinery is involved.
type arPosterior struct {
	w []float64
	p int

	grad []float64
}

func (m *arPosterior) Observe(x []float64) float64 {
	p := m.p
	c := x[0]
	phi := x[1 : 1+p]
	ls := x[1+p]
	sigma := math.Exp(ls)

	m.grad = make([]float64, len(x))

	// priors: c ~ N(0,5), phi ~ N(0,1), log sigma ~ N(0,1)
	ll := dist.Normal.Logp(0, 5, c)
	m.grad[0] = -c / 25
	for i, v := range phi {
		ll += dist.Normal.Logp(0, 1, v)
		m.grad[1+i] = -v
	}
	ll += dist.Normal.Logp(0, 1, ls)
	m.grad[1+p] = -ls

	inv2 := 1 / (sigma * sigma)
	for t := p; t < len(m.w); t++ {
		mu := c
		for i := 1; i <= p; i++ {
			mu += phi[i-1] * m.w[t-i]
		}
		e := m.w[t] - mu

		ll += dist.Normal.Logp(mu, sigma, m.w[t])

		m.grad[0] += e * inv2
		for i := 1; i <= p; i++ {
			m.grad[i] += e * m.w[t-i] * inv2
		}
		m.grad[1+p] += e*e*inv2 - 1
	}
	return ll
}

func (m *arPosterior) Gradient() []float64 {
	return m.grad
}

func (b BayesARIMA) Fit(ctx context.Context, train *timedataset.TimeDataset, cfg *Config) (Fitted, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.Kind != KindBayesARIMA {
		return nil, fmt.Errorf("%s config passed to bayes arima backend, %w", cfg.Kind, ErrKindMismatch)
	}
	sub, err := cfg.BayesARIMA.Validate()
	if err != nil {
		return nil, err
	}
	if err := validateTrain(train); err != nil {
		return nil, err
	}

	obs := dropNaN(train.Y)
	w := difference(obs, sub.D)
	if len(w) <= sub.P+1 {
		return nil, fmt.Errorf("%d samples after differencing for ar(%d), %w", len(w), sub.P, ErrInsufficientData)
	}

	m := &arPosterior{w: w, p: sub.P}

	x := make([]float64, sub.P+2)
	if phi0, err := yuleWalker(w, sub.P); err == nil {
		copy(x[1:1+sub.P], phi0)
	}
	_, sd := stat.MeanStdDev(w, nil)
	if sd > 0 {
		x[1+sub.P] = math.Log(sd)
	}

	// MAP warmup so the chain starts near the posterior mode
	Func, Grad := infer.FuncGrad(m)
	problem := optimize.Problem{Func: Func, Grad: Grad}
	if result, err := optimize.Minimize(problem, x, &optimize.Settings{
		MajorIterations: 100,
	}, nil); err == nil && result != nil {
		x = result.X
	}

	draws, err := sampleHMC(ctx, m, x, sub)
	if err != nil {
		return nil, err
	}

	return &bayesARModel{
		cfg:   sub,
		draws: draws,
		tails: diffTails(obs, sub.D),
		wTail: append([]float64(nil), w[len(w)-sub.P:]...),
	}, nil
}

func sampleHMC(ctx context.Context, m *arPosterior, x []float64, cfg *BayesARIMAConfig) ([][]float64, error) {
	hmc := &infer.HMC{
		L:   cfg.Leapfrog,
		Eps: cfg.StepSize,
	}
	samples := make(chan []float64)
	hmc.Sample(m, x, samples)
	defer hmc.Stop()

	total := cfg.Burn + cfg.Samples
	draws := make([][]float64, 0, cfg.Samples)
	for i := 0; i != total; i++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sampler interrupted, %w", ErrFitFailure)
		}
		s := <-samples
		if len(s) == 0 {
			break
		}
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("sampler diverged at draw %d, %w", i, ErrFitFailure)
			}
		}
		if i < cfg.Burn {
			continue
		}
		draws = append(draws, append([]float64(nil), s...))
	}
	if len(draws) == 0 {
		return nil, fmt.Errorf("sampler produced no draws, %w", ErrFitFailure)
	}
	return draws, nil
}

type bayesARModel struct {
	cfg   *BayesARIMAConfig
	draws [][]float64

	tails []float64 // differencing tails of the training series
	wTail []float64 // trailing p values on the differenced scale
}

// Forecast simulates posterior predictive paths per draw and reduces them to
// a mean and empirical quantile bounds per step.
func (m *bayesARModel) Forecast(horizon int, quantiles [2]float64) (*Forecast, error) {
	if err := ValidateQuantiles(quantiles); err != nil {
		return nil, err
	}
	if horizon < 1 {
		return nil, ErrInvalidHorizon
	}

	rng := rand.New(rand.NewPCG(m.cfg.Seed, m.cfg.Seed^0x9e3779b97f4a7c15))
	p := m.cfg.P

	// paths[h] collects the step h value of every simulated path
	paths := make([][]float64, horizon)
	for h := range paths {
		paths[h] = make([]float64, 0, len(m.draws))
	}

	for _, draw := range m.draws {
		c := draw[0]
		phi := draw[1 : 1+p]
		sigma := math.Exp(draw[1+p])

		hist := append([]float64(nil), m.wTail...)
		path := make([]float64, horizon)
		for h := 0; h < horizon; h++ {
			mu := c
			for i := 1; i <= p && i <= len(hist); i++ {
				mu += phi[i-1] * hist[len(hist)-i]
			}
			v := mu + sigma*rng.NormFloat64()
			path[h] = v
			hist = append(hist, v)
		}
		path = integrate(path, m.tails, m.cfg.D)
		for h, v := range path {
			paths[h] = append(paths[h], v)
		}
	}

	point := make([]float64, horizon)
	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		vals := paths[h]
		point[h] = stat.Mean(vals, nil)
		sort.Float64s(vals)
		lower[h] = stat.Quantile(quantiles[0], stat.Empirical, vals, nil)
		upper[h] = stat.Quantile(quantiles[1], stat.Empirical, vals, nil)
	}

	return &Forecast{
		Point:     point,
		Lower:     lower,
		Upper:     upper,
		Quantiles: quantiles,
	}, nil
}
