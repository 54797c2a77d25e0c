package denoise

import (
	"fmt"
	"math"
	"math/cmplx"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// MaxOrder is the highest Daubechies order available.
const MaxOrder = 20

var (
	filterMu    sync.Mutex
	filterCache = map[int][]float64{}
)

// Wavelet returns the decomposition low-pass filter of a Daubechies wavelet
// named "db1".."db20" ("haar" is db1). Coefficients are in ascending order and
// sum to sqrt(2).
func Wavelet(name string) ([]float64, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "haar" {
		name = "db1"
	}
	if !strings.HasPrefix(name, "db") {
		return nil, fmt.Errorf("unsupported wavelet %q", name)
	}
	order, err := strconv.Atoi(name[2:])
	if err != nil || order < 1 || order > MaxOrder {
		return nil, fmt.Errorf("unsupported wavelet %q", name)
	}
	return daubechies(order)
}

func daubechies(order int) ([]float64, error) {
	filterMu.Lock()
	defer filterMu.Unlock()

	if h, ok := filterCache[order]; ok {
		return h, nil
	}
	h, err := designDaubechies(order)
	if err != nil {
		return nil, err
	}
	filterCache[order] = h
	return h, nil
}

// designDaubechies performs the spectral factorisation
//
//	|H(w)|^2 = cos^(2N)(w/2) P(sin^2(w/2)),  P(y) = sum_{k<N} C(N-1+k, k) y^k
//
// keeping the roots inside the unit circle, which gives the minimum-phase
// filter of length 2N.
func designDaubechies(order int) ([]float64, error) {
	ys, err := polyRoots(binomialSeries(order))
	if err != nil {
		return nil, fmt.Errorf("db%d: %w", order, err)
	}

	poly := []complex128{1}
	for i := 0; i < order; i++ {
		poly = polyMulLinear(poly, 1)
	}
	for _, y := range ys {
		// z + 1/z = 2 - 4y
		b := 2 - 4*y
		disc := cmplx.Sqrt(b*b - 4)
		z := (b - disc) / 2
		if cmplx.Abs(z) > 1 {
			z = (b + disc) / 2
		}
		poly = polyMulLinear(poly, -z)
	}

	h := make([]float64, len(poly))
	sum := 0.0
	for i, c := range poly {
		h[i] = real(c)
		sum += h[i]
	}
	if sum == 0 || math.IsNaN(sum) {
		return nil, fmt.Errorf("db%d: degenerate filter", order)
	}
	scale := math.Sqrt2 / sum
	for i := range h {
		h[i] *= scale
	}
	return h, nil
}

// binomialSeries returns the ascending coefficients of P(y).
func binomialSeries(order int) []float64 {
	c := make([]float64, order)
	c[0] = 1
	for k := 1; k < order; k++ {
		// C(N-1+k, k) = C(N-2+k, k-1) * (N-1+k) / k
		c[k] = c[k-1] * float64(order-1+k) / float64(k)
	}
	return c
}

// polyRoots finds the roots of an ascending-coefficient polynomial as the
// eigenvalues of its companion matrix.
func polyRoots(coeffs []float64) ([]complex128, error) {
	deg := len(coeffs) - 1
	if deg < 1 {
		return nil, nil
	}
	lead := coeffs[deg]
	comp := mat.NewDense(deg, deg, nil)
	for j := 0; j < deg; j++ {
		comp.Set(0, j, -coeffs[deg-1-j]/lead)
	}
	for i := 1; i < deg; i++ {
		comp.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(comp, mat.EigenNone); !ok {
		return nil, fmt.Errorf("eigen decomposition did not converge")
	}
	return eig.Values(nil), nil
}

// polyMulLinear multiplies an ascending polynomial by (z + c).
func polyMulLinear(p []complex128, c complex128) []complex128 {
	out := make([]complex128, len(p)+1)
	for i, v := range p {
		out[i] += c * v
		out[i+1] += v
	}
	return out
}

// qmf returns the high-pass partner g[n] = (-1)^n h[L-1-n].
func qmf(h []float64) []float64 {
	L := len(h)
	g := make([]float64, L)
	for n := range g {
		g[n] = h[L-1-n]
		if n%2 == 1 {
			g[n] = -g[n]
		}
	}
	return g
}
