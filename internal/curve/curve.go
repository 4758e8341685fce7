// Package curve wraps the secp256k1 scalar field and group exposed by
// github.com/decred/dcrd/dcrec/secp256k1/v4: scalar/point arithmetic,
// multi-scalar evaluation, compressed serialization with a canonical
// encoding for the identity element, and a seed-derived KDF.
//
// Secret-carrying arithmetic (Add, Mul, Negate, polynomial evaluation) uses
// decred's ModNScalar, which is constant time by construction. All point
// multiplication (ScalarBaseMul, ScalarMul) goes through decred's *NonConst
// group functions, which are not constant time, including when the scalar
// is a secret (polynomial coefficients, host and decryption keys, ECDH).
package curve

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/hkdf"
)

const scalarLen = 32

// ErrInvalidScalar is returned when a scalar encoding is not exactly 32
// bytes long.
var ErrInvalidScalar = errors.New("curve: invalid scalar encoding")

// ErrInvalidPoint is returned when a 33-byte string is neither the
// infinity sentinel nor a valid compressed point encoding.
var ErrInvalidPoint = errors.New("curve: invalid point encoding")

// Scalar is an element of the secp256k1 scalar field.
type Scalar struct {
	v secp256k1.ModNScalar
}

// ScalarFromUint32 embeds a small non-secret integer (a participant index,
// a power-of-x exponent counter) as a scalar.
func ScalarFromUint32(x uint32) Scalar {
	var s Scalar
	s.v.SetInt(x)
	return s
}

// ScalarFromBytes decodes 32 big-endian bytes modulo the group order.
// Inputs at or above the order are reduced rather than rejected, matching
// the usual hash-to-scalar convention this module relies on for KDF and
// tagged-hash outputs.
func ScalarFromBytes(b []byte) (Scalar, error) {
	if len(b) != 32 {
		return Scalar{}, ErrInvalidScalar
	}
	var s Scalar
	s.v.SetByteSlice(b)
	return s, nil
}

// Bytes returns the 32-byte big-endian encoding of s.
func (s Scalar) Bytes() [32]byte {
	return s.v.Bytes()
}

// IsZero reports whether s is the additive identity.
func (s Scalar) IsZero() bool {
	return s.v.IsZero()
}

// Add returns s+o in the scalar field.
func (s Scalar) Add(o Scalar) Scalar {
	var r Scalar
	r.v.Set(&s.v)
	r.v.Add(&o.v)
	return r
}

// Mul returns s*o in the scalar field.
func (s Scalar) Mul(o Scalar) Scalar {
	var r Scalar
	r.v.Set(&s.v)
	r.v.Mul(&o.v)
	return r
}

// Negate returns -s in the scalar field.
func (s Scalar) Negate() Scalar {
	var r Scalar
	r.v.Set(&s.v)
	r.v.Negate()
	return r
}

// Inverse returns s^-1 in the scalar field, for Lagrange-interpolation
// denominators (vss.RecoverSecret).
func (s Scalar) Inverse() Scalar {
	var r Scalar
	r.v.Set(&s.v)
	r.v.InverseNonConst()
	return r
}

// Equal reports whether s and o hold the same value, comparing their
// encodings in constant time.
func (s Scalar) Equal(o Scalar) bool {
	sb := s.Bytes()
	ob := o.Bytes()
	return subtle.ConstantTimeCompare(sb[:], ob[:]) == 1
}

// Zeroize overwrites s with the additive identity. Call on any scalar that
// held a secret (polynomial coefficient, share, pad value) once it is no
// longer needed.
func (s *Scalar) Zeroize() {
	s.v.Zero()
}

// Point is an element of the secp256k1 group, including the distinguished
// identity element (point at infinity).
type Point struct {
	p        secp256k1.JacobianPoint
	infinity bool
}

// Generator returns the secp256k1 base point G.
func Generator() Point {
	return ScalarBaseMul(ScalarFromUint32(1))
}

// ScalarBaseMul returns s*G.
func ScalarBaseMul(s Scalar) Point {
	if s.IsZero() {
		return Point{infinity: true}
	}
	var j secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s.v, &j)
	j.ToAffine()
	return Point{p: j}
}

// ScalarMul returns s*p.
func (p Point) ScalarMul(s Scalar) Point {
	if p.infinity || s.IsZero() {
		return Point{infinity: true}
	}
	var j secp256k1.JacobianPoint
	p.toJacobian(&j)
	var r secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&s.v, &j, &r)
	if (r.X.IsZero() && r.Y.IsZero()) || r.Z.IsZero() {
		return Point{infinity: true}
	}
	r.ToAffine()
	return Point{p: r}
}

// Add returns p+o.
func (p Point) Add(o Point) Point {
	if p.infinity {
		return o
	}
	if o.infinity {
		return p
	}
	var jp, jo, jr secp256k1.JacobianPoint
	p.toJacobian(&jp)
	o.toJacobian(&jo)
	secp256k1.AddNonConst(&jp, &jo, &jr)
	if (jr.X.IsZero() && jr.Y.IsZero()) || jr.Z.IsZero() {
		return Point{infinity: true}
	}
	jr.ToAffine()
	return Point{p: jr}
}

// SumPoints folds Add over ps, returning the identity for an empty slice.
func SumPoints(ps []Point) Point {
	acc := Point{infinity: true}
	for _, p := range ps {
		acc = acc.Add(p)
	}
	return acc
}

func (p Point) toJacobian(j *secp256k1.JacobianPoint) {
	j.X.Set(&p.p.X)
	j.Y.Set(&p.p.Y)
	j.Z.SetInt(1)
}

// IsInfinity reports whether p is the identity element.
func (p Point) IsInfinity() bool {
	return p.infinity
}

// Equal reports whether p and o are the same point.
func (p Point) Equal(o Point) bool {
	if p.infinity != o.infinity {
		return false
	}
	if p.infinity {
		return true
	}
	return p.p.X.Equals(&o.p.X) && p.p.Y.Equals(&o.p.Y)
}

// Bytes returns the 33-byte compressed encoding, with the identity element
// encoded as 33 zero bytes.
func (p Point) Bytes() [33]byte {
	var out [33]byte
	if p.infinity {
		return out
	}
	pub := secp256k1.NewPublicKey(&p.p.X, &p.p.Y)
	copy(out[:], pub.SerializeCompressed())
	return out
}

// PointFromBytes decodes a 33-byte compressed point, recognizing the
// all-zero infinity sentinel.
func PointFromBytes(b []byte) (Point, error) {
	if len(b) != 33 {
		return Point{}, ErrInvalidPoint
	}
	allZero := true
	for _, c := range b {
		if c != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return Point{infinity: true}, nil
	}
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return Point{}, ErrInvalidPoint
	}
	var j secp256k1.JacobianPoint
	pub.AsJacobian(&j)
	return Point{p: j}, nil
}

// XOnly returns the 32-byte x-only encoding used by BIP-340, failing if p
// is the identity element.
func (p Point) XOnly() ([32]byte, error) {
	var out [32]byte
	if p.infinity {
		return out, ErrInvalidPoint
	}
	xb := p.p.X.Bytes()
	copy(out[:], xb[:])
	return out, nil
}

// MultiScalarMul computes Σ scalars[i]*points[i]. Used by VSS commitment
// verification, where the inputs are all public.
func MultiScalarMul(scalars []Scalar, points []Point) Point {
	acc := Point{infinity: true}
	for i := range scalars {
		acc = acc.Add(points[i].ScalarMul(scalars[i]))
	}
	return acc
}

// KDF derives a 32-byte value from seed under a domain-separation label
// via HKDF-SHA256.
func KDF(seed []byte, label string) [scalarLen]byte {
	var out [scalarLen]byte
	h := hkdf.New(sha256.New, seed, nil, []byte(label))
	_, _ = io.ReadFull(h, out[:])
	return out
}

// DeriveScalar derives a nonzero scalar from seed for coefficient index
// (t-degree position) coeff, retrying with an incremented counter on a
// zero result.
func DeriveScalar(seed []byte, label string, coeff int) (Scalar, error) {
	for counter := uint32(0); counter < 1<<16; counter++ {
		var buf [8]byte
		binary.BigEndian.PutUint32(buf[0:4], uint32(coeff))
		binary.BigEndian.PutUint32(buf[4:8], counter)
		h := hkdf.New(sha256.New, seed, nil, append([]byte(label), buf[:]...))
		var raw [scalarLen]byte
		if _, err := io.ReadFull(h, raw[:]); err != nil {
			return Scalar{}, err
		}
		s, err := ScalarFromBytes(raw[:])
		if err != nil {
			continue
		}
		if s.IsZero() {
			continue
		}
		return s, nil
	}
	return Scalar{}, errors.New("curve: coefficient derivation exhausted retries")
}
