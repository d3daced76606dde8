package models

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrTargetLenMismatch = errors.New("target length does not match design matrix rows")
	ErrRankDeficient     = errors.New("design matrix is rank deficient")
)

// olsSolve computes least squares coefficients of y on x using QR
// factorization with back substitution.
func olsSolve(x *mat.Dense, y []float64) ([]float64, error) {
	m, n := x.Dims()
	if len(y) != m {
		return nil, fmt.Errorf("design matrix has %d rows and target has %d, %w", m, len(y), ErrTargetLenMismatch)
	}

	yMx := mat.NewDense(1, m, y)

	qr := new(mat.QR)
	qr.Factorize(x)

	q := new(mat.Dense)
	r := new(mat.Dense)

	qr.QTo(q)
	qr.RTo(r)
	yq := new(mat.Dense)
	yq.Mul(yMx, q)

	c := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		if r.At(i, i) == 0 {
			return nil, fmt.Errorf("zero pivot at column %d, %w", i, ErrRankDeficient)
		}
		c[i] = yq.At(0, i)
		for j := i + 1; j < n; j++ {
			c[i] -= c[j] * r.At(i, j)
		}
		c[i] /= r.At(i, i)
	}
	return c, nil
}

// difference applies d rounds of first differencing.
func difference(y []float64, d int) []float64 {
	w := make([]float64, len(y))
	copy(w, y)
	for k := 0; k < d; k++ {
		for i := len(w) - 1; i > 0; i-- {
			w[i] -= w[i-1]
		}
		w = w[1:]
	}
	return w
}

// diffTails returns the last value of each differencing level 0..d-1, used to
// undifference forecasts back to the original scale.
func diffTails(y []float64, d int) []float64 {
	tails := make([]float64, d)
	w := make([]float64, len(y))
	copy(w, y)
	for k := 0; k < d; k++ {
		tails[k] = w[len(w)-1]
		for i := len(w) - 1; i > 0; i-- {
			w[i] -= w[i-1]
		}
		w = w[1:]
	}
	return tails
}

// integrate inverts d rounds of differencing on a forecast path given the
// tails captured by diffTails.
func integrate(fc []float64, tails []float64, d int) []float64 {
	out := make([]float64, len(fc))
	copy(out, fc)
	for k := d - 1; k >= 0; k-- {
		acc := tails[k]
		for i := range out {
			acc += out[i]
			out[i] = acc
		}
	}
	return out
}

// acf computes the autocorrelation function for lags 0..maxLag.
func acf(y []float64, maxLag int) []float64 {
	n := len(y)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range y {
		diff := v - mean
		variance += diff * diff
	}
	if variance == 0 {
		return nil
	}

	out := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (y[i] - mean) * (y[i-k] - mean)
		}
		out[k] = sum / variance
	}
	return out
}

// pacf computes the partial autocorrelation function for lags 0..maxLag using
// the Durbin-Levinson recursion.
func pacf(y []float64, maxLag int) []float64 {
	n := len(y)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 1 {
		return nil
	}

	r := acf(y, maxLag)
	if r == nil {
		return nil
	}

	out := make([]float64, maxLag+1)
	out[0] = 1.0

	phi := make([][]float64, maxLag+1)
	for i := range phi {
		phi[i] = make([]float64, maxLag+1)
	}

	phi[1][1] = r[1]
	out[1] = r[1]

	for k := 2; k <= maxLag; k++ {
		num := r[k]
		den := 1.0
		for j := 1; j < k; j++ {
			num -= phi[k-1][j] * r[k-j]
			den -= phi[k-1][j] * r[j]
		}
		if den == 0 {
			return out
		}
		phi[k][k] = num / den
		for j := 1; j < k; j++ {
			phi[k][j] = phi[k-1][j] - phi[k][k]*phi[k-1][k-j]
		}
		out[k] = phi[k][k]
	}
	return out
}

// yuleWalker estimates AR(p) coefficients from the autocorrelation sequence.
func yuleWalker(y []float64, p int) ([]float64, error) {
	r := acf(y, p)
	if r == nil || len(r) < p+1 {
		return nil, ErrInsufficientData
	}
	rMx := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			rMx.SetSym(i, j, r[j-i])
		}
	}
	b := mat.NewVecDense(p, r[1:p+1])
	var phi mat.VecDense
	if err := phi.SolveVec(rMx, b); err != nil {
		return nil, fmt.Errorf("singular autocorrelation matrix, %w", ErrFitFailure)
	}
	out := make([]float64, p)
	for i := 0; i < p; i++ {
		out[i] = phi.AtVec(i)
	}
	return out, nil
}

// expandDiff folds d rounds of differencing into the autoregressive
// polynomial, returning coefficients c such that
// y_t = sum c_i y_{t-i} + (stationary model terms).
func expandDiff(phi []float64, d int) []float64 {
	// a(B) = phi(B) * (1-B)^d with phi(B) = 1 - sum phi_i B^i
	a := make([]float64, len(phi)+1)
	a[0] = 1
	for i, p := range phi {
		a[i+1] = -p
	}
	for k := 0; k < d; k++ {
		next := make([]float64, len(a)+1)
		for i, v := range a {
			next[i] += v
			next[i+1] -= v
		}
		a = next
	}
	out := make([]float64, len(a)-1)
	for i := 1; i < len(a); i++ {
		out[i-1] = -a[i]
	}
	return out
}

// psiWeights expands the model into its moving average representation up to
// h terms. phi holds the (possibly difference-expanded) AR coefficients and
// theta the MA coefficients.
func psiWeights(phi, theta []float64, h int) []float64 {
	psi := make([]float64, h)
	if h == 0 {
		return psi
	}
	psi[0] = 1
	for j := 1; j < h; j++ {
		var v float64
		if j <= len(theta) {
			v = theta[j-1]
		}
		for i := 1; i <= j && i <= len(phi); i++ {
			v += phi[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

func normalQuantile(p float64) float64 {
	return distuv.Normal{Mu: 0, Sigma: 1}.Quantile(p)
}
