// Package vss implements Feldman verifiable secret sharing: a dealer
// derives a degree-(t-1) polynomial pseudorandomly from a seed, publishes
// a commitment to its coefficients, evaluates the polynomial to produce n
// shares, and any recipient can verify a share against the commitment
// without learning the secret.
//
// The polynomial/commitment split mirrors kyber's share package, fixed to
// the secp256k1 group via internal/curve and to deterministic seed-derived
// (rather than CSPRNG-drawn) coefficients.
package vss

import (
	"errors"
	"fmt"

	"github.com/dkgcore/chilldkg/internal/curve"
)

// ErrInvalidShareSize names a share or commitment of the wrong size. No
// function in this package returns it; Verify reports any mismatch as false.
var ErrInvalidShareSize = errors.New("vss: invalid size")

// Polynomial is a dealer's degree-(t-1) secret polynomial. Coeffs[0] is
// the dealer's contribution to the group secret.
type Polynomial struct {
	Coeffs []curve.Scalar
}

// Commitment is the ordered Feldman commitment (A0, A1, ..., A_{t-1}) to a
// Polynomial's coefficients. A0 is the commitment to the secret.
type Commitment struct {
	A []curve.Point
}

// Threshold returns |C|, the polynomial's degree-derived threshold t.
func (c Commitment) Threshold() int { return len(c.A) }

// CommitmentToSecret returns A0.
func (c Commitment) CommitmentToSecret() curve.Point { return c.A[0] }

// NonconstTerms returns A1..A_{t-1}.
func (c Commitment) NonconstTerms() []curve.Point {
	if len(c.A) == 0 {
		return nil
	}
	return c.A[1:]
}

// Generate derives a degree-(t-1) polynomial pseudorandomly from seed via
// a domain-separated KDF, retrying each coefficient's derivation on a zero
// result so that A0 (and every Aj) is never the identity element.
func Generate(seed []byte, t int) (Polynomial, Commitment, error) {
	if t <= 0 {
		return Polynomial{}, Commitment{}, fmt.Errorf("vss: threshold must be positive, got %d", t)
	}
	coeffs := make([]curve.Scalar, t)
	commit := make([]curve.Point, t)
	for j := 0; j < t; j++ {
		c, err := curve.DeriveScalar(seed, "vss coefficient", j)
		if err != nil {
			return Polynomial{}, Commitment{}, err
		}
		coeffs[j] = c
		commit[j] = curve.ScalarBaseMul(c)
	}
	return Polynomial{Coeffs: coeffs}, Commitment{A: commit}, nil
}

// Commit recomputes the Feldman commitment for an already-generated
// polynomial.
func (p Polynomial) Commit() Commitment {
	a := make([]curve.Point, len(p.Coeffs))
	for j, c := range p.Coeffs {
		a[j] = curve.ScalarBaseMul(c)
	}
	return Commitment{A: a}
}

// Shares evaluates p at x=1..n via Horner's method, returning shares[i] =
// f(i+1) for i in 0..n-1. Shares are always one-based; f(0) is the secret
// and is never handed out as a share.
func (p Polynomial) Shares(n int) []curve.Scalar {
	out := make([]curve.Scalar, n)
	for i := 0; i < n; i++ {
		x := curve.ScalarFromUint32(uint32(i + 1))
		out[i] = horner(p.Coeffs, x)
	}
	return out
}

func horner(coeffs []curve.Scalar, x curve.Scalar) curve.Scalar {
	if len(coeffs) == 0 {
		return curve.ScalarFromUint32(0)
	}
	acc := coeffs[len(coeffs)-1]
	for j := len(coeffs) - 2; j >= 0; j-- {
		acc = acc.Mul(x).Add(coeffs[j])
	}
	return acc
}

// Zeroize clears the polynomial's coefficients. Call once shares have been
// emitted and the polynomial is no longer needed.
func (p Polynomial) Zeroize() {
	for i := range p.Coeffs {
		p.Coeffs[i].Zeroize()
	}
}

// Verify checks that share s is consistent with commitment c at one-based
// index i: s*G == Σ_j i^j * A_j, via multi-scalar multiplication.
func Verify(i int, s curve.Scalar, c Commitment) bool {
	lhs := curve.ScalarBaseMul(s)
	x := curve.ScalarFromUint32(uint32(i))
	powers := make([]curve.Scalar, len(c.A))
	xp := curve.ScalarFromUint32(1)
	for j := range c.A {
		powers[j] = xp
		xp = xp.Mul(x)
	}
	rhs := curve.MultiScalarMul(powers, c.A)
	return lhs.Equal(rhs)
}

// RecoverSecret reconstructs f(0) by Lagrange interpolation of the shares
// at the given one-based indices. Any size-t subset of shares for a
// degree-(t-1) polynomial yields the same result.
func RecoverSecret(indices []int, shares []curve.Scalar) curve.Scalar {
	acc := curve.ScalarFromUint32(0)
	for i := range indices {
		lambda := lagrangeCoefficient(indices, i)
		acc = acc.Add(shares[i].Mul(lambda))
	}
	return acc
}

func lagrangeCoefficient(indices []int, i int) curve.Scalar {
	xi := curve.ScalarFromUint32(uint32(indices[i]))
	num := curve.ScalarFromUint32(1)
	den := curve.ScalarFromUint32(1)
	for j, xj := range indices {
		if j == i {
			continue
		}
		xjScalar := curve.ScalarFromUint32(uint32(xj))
		num = num.Mul(xjScalar)
		den = den.Mul(xjScalar.Add(xi.Negate()))
	}
	return num.Mul(den.Inverse())
}

// EvalCommitment evaluates commitment c at one-based index i in the
// exponent, returning i^j-weighted Σ A_j = f(i)*G without knowledge of
// the secret polynomial. Used to derive public shares from an aggregated
// commitment.
func EvalCommitment(i int, c Commitment) curve.Point {
	x := curve.ScalarFromUint32(uint32(i))
	powers := make([]curve.Scalar, len(c.A))
	xp := curve.ScalarFromUint32(1)
	for j := range c.A {
		powers[j] = xp
		xp = xp.Mul(x)
	}
	return curve.MultiScalarMul(powers, c.A)
}
