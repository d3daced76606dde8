package models

import (
	"context"
	"fmt"
	"math"

	"github.com/seriesbench/seriesbench/timedataset"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// ARIMAConfig parameterizes a fixed order ARIMA(p,d,q) fit by conditional
// least squares.
type ARIMAConfig struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`

	// Constant adds an intercept on the differenced scale. Usually left off
	// when D > 0.
	Constant bool `json:"constant"`
}

// NewDefaultARIMAConfig returns the ARIMA(2,1,0) baseline configuration.
func NewDefaultARIMAConfig() *ARIMAConfig {
	return &ARIMAConfig{P: 2, D: 1, Q: 0}
}

func (c *ARIMAConfig) Validate() (*ARIMAConfig, error) {
	if c == nil {
		return NewDefaultARIMAConfig(), nil
	}
	if c.P < 0 || c.D < 0 || c.Q < 0 {
		return nil, fmt.Errorf("negative order (%d,%d,%d), %w", c.P, c.D, c.Q, ErrKindMismatch)
	}
	if c.P == 0 && c.Q == 0 && !c.Constant && c.D == 0 {
		return nil, fmt.Errorf("order (0,0,0) without constant has nothing to fit, %w", ErrKindMismatch)
	}
	out := *c
	return &out, nil
}

// ARIMA is the fixed order classical backend.
type ARIMA struct{}

func (ARIMA) Name() string { return "arima" }

func (a ARIMA) Fit(ctx context.Context, train *timedataset.TimeDataset, cfg *Config) (Fitted, error) {
	sub, err := arimaSubConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := validateTrain(train); err != nil {
		return nil, err
	}
	return fitARIMA(ctx, train.Y, sub)
}

func arimaSubConfig(cfg *Config) (*ARIMAConfig, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.Kind != KindARIMA {
		return nil, fmt.Errorf("%s config passed to arima backend, %w", cfg.Kind, ErrKindMismatch)
	}
	return cfg.ARIMA.Validate()
}

type arimaModel struct {
	cfg *ARIMAConfig

	constant float64
	phi      []float64 // AR coefficients on the differenced scale
	phiFull  []float64 // AR coefficients with differencing folded in
	theta    []float64
	sigma2   float64
	aicc     float64

	lastY   []float64 // trailing P+D observations, oldest first
	lastEps []float64 // trailing Q residuals, oldest first
}

func fitARIMA(ctx context.Context, y []float64, cfg *ARIMAConfig) (*arimaModel, error) {
	obs := dropNaN(y)
	w := difference(obs, cfg.D)
	if len(w) <= cfg.P+cfg.Q+1 {
		return nil, fmt.Errorf("%d samples after differencing for order (%d,%d,%d), %w",
			len(w), cfg.P, cfg.D, cfg.Q, ErrInsufficientData)
	}

	m := &arimaModel{cfg: cfg}

	var err error
	if cfg.Q == 0 {
		err = m.fitCLS(w)
	} else {
		err = m.fitCSS(ctx, w)
	}
	if err != nil {
		return nil, err
	}

	m.phiFull = expandDiff(m.phi, cfg.D)

	hist := cfg.P + cfg.D
	if hist > len(obs) {
		hist = len(obs)
	}
	m.lastY = append([]float64(nil), obs[len(obs)-hist:]...)
	return m, nil
}

// fitCLS fits a pure AR model by regressing on its own lags.
func (m *arimaModel) fitCLS(w []float64) error {
	p := m.cfg.P
	nEff := len(w) - p
	cols := p
	if m.cfg.Constant {
		cols++
	}
	if cols == 0 {
		// ARIMA(0,d,0) with no constant is a pure random walk on the
		// undifferenced scale; there is nothing to regress
		m.finalize(w)
		return nil
	}

	x := mat.NewDense(nEff, cols, nil)
	target := make([]float64, nEff)
	for t := p; t < len(w); t++ {
		row := t - p
		j := 0
		if m.cfg.Constant {
			x.Set(row, 0, 1)
			j = 1
		}
		for i := 1; i <= p; i++ {
			x.Set(row, j, w[t-i])
			j++
		}
		target[row] = w[t]
	}

	coef, err := olsSolve(x, target)
	if err != nil {
		return fmt.Errorf("ar lag regression, %w", ErrFitFailure)
	}
	if m.cfg.Constant {
		m.constant = coef[0]
		m.phi = coef[1:]
	} else {
		m.phi = coef
	}
	m.finalize(w)
	return nil
}

// fitCSS minimizes the conditional sum of squares over the joint AR and MA
// coefficients with Nelder-Mead.
func (m *arimaModel) fitCSS(ctx context.Context, w []float64) error {
	p, q := m.cfg.P, m.cfg.Q
	nParams := p + q
	if m.cfg.Constant {
		nParams++
	}

	init := make([]float64, nParams)
	if p > 0 {
		// warm start the AR block from Yule-Walker
		if phi0, err := yuleWalker(w, p); err == nil {
			off := 0
			if m.cfg.Constant {
				off = 1
			}
			copy(init[off:off+p], phi0)
		}
	}

	unpack := func(x []float64) (c float64, phi, theta []float64) {
		i := 0
		if m.cfg.Constant {
			c = x[0]
			i = 1
		}
		phi = x[i : i+p]
		theta = x[i+p:]
		return c, phi, theta
	}

	css := func(x []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		c, phi, theta := unpack(x)
		_, ssr := cssResiduals(w, c, phi, theta)
		return ssr
	}

	problem := optimize.Problem{Func: css}
	result, err := optimize.Minimize(problem, init, nil, &optimize.NelderMead{})
	if err != nil && result == nil {
		return fmt.Errorf("css optimization, %w", ErrFitFailure)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("css optimization interrupted, %w", ErrFitFailure)
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return fmt.Errorf("css did not converge to a finite objective, %w", ErrFitFailure)
	}

	m.constant, m.phi, m.theta = unpack(result.X)
	m.finalize(w)
	return nil
}

// finalize computes residuals, the innovation variance, AICc, and the
// trailing residual state needed for forecasting.
func (m *arimaModel) finalize(w []float64) {
	eps, ssr := cssResiduals(w, m.constant, m.phi, m.theta)
	nEff := len(w) - m.cfg.P
	k := len(m.phi) + len(m.theta) + 1 // +1 for the innovation variance
	if m.cfg.Constant {
		k++
	}

	m.sigma2 = ssr / float64(nEff)
	m.aicc = float64(nEff)*math.Log(m.sigma2) + 2*float64(k)
	if denom := float64(nEff - k - 1); denom > 0 {
		m.aicc += 2 * float64(k) * float64(k+1) / denom
	}

	if m.cfg.Q > 0 {
		tail := m.cfg.Q
		if tail > len(eps) {
			tail = len(eps)
		}
		m.lastEps = append([]float64(nil), eps[len(eps)-tail:]...)
	}
}

// cssResiduals runs the innovation recursion conditioning on the first p
// values and zero pre-sample residuals.
func cssResiduals(w []float64, c float64, phi, theta []float64) ([]float64, float64) {
	p := len(phi)
	eps := make([]float64, len(w))
	var ssr float64
	for t := p; t < len(w); t++ {
		pred := c
		for i := 1; i <= p; i++ {
			pred += phi[i-1] * w[t-i]
		}
		for j := 1; j <= len(theta) && t-j >= 0; j++ {
			pred += theta[j-1] * eps[t-j]
		}
		eps[t] = w[t] - pred
		ssr += eps[t] * eps[t]
	}
	return eps, ssr
}

func (m *arimaModel) Forecast(horizon int, quantiles [2]float64) (*Forecast, error) {
	if err := ValidateQuantiles(quantiles); err != nil {
		return nil, err
	}
	if horizon < 1 {
		return nil, ErrInvalidHorizon
	}

	hist := append([]float64(nil), m.lastY...)
	point := make([]float64, horizon)
	for h := 1; h <= horizon; h++ {
		pred := m.constant
		for i := 1; i <= len(m.phiFull) && i <= len(hist); i++ {
			pred += m.phiFull[i-1] * hist[len(hist)-i]
		}
		for j := 1; j <= len(m.theta); j++ {
			// future innovations are zero; past ones come from the fit state
			k := len(m.lastEps) + h - 1 - j
			if k >= 0 && k < len(m.lastEps) && h-j <= 0 {
				pred += m.theta[j-1] * m.lastEps[k]
			}
		}
		point[h-1] = pred
		hist = append(hist, pred)
	}

	psi := psiWeights(m.phiFull, m.theta, horizon)
	zLo := normalQuantile(quantiles[0])
	zHi := normalQuantile(quantiles[1])

	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	var acc float64
	for h := 0; h < horizon; h++ {
		acc += psi[h] * psi[h]
		sd := math.Sqrt(m.sigma2 * acc)
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

// AICc reports the corrected Akaike information criterion of the fit, used
// for order selection.
func (m *arimaModel) AICc() float64 {
	return m.aicc
}

func dropNaN(y []float64) []float64 {
	out := make([]float64, 0, len(y))
	for _, v := range y {
		if math.IsNaN(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
