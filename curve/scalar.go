// Package curve provides the secp256k1 scalar and point arithmetic shared by every protocol in
// this module. It re-expresses the curve as two opaque value types, Scalar and Point, with only
// the operations the two-party protocols use.
package curve

import (
	"crypto/rand"
	"crypto/sha256"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
	"github.com/pkg/errors"
)

var (
	s256       = btcec.S256()
	s256Params = s256.Params()

	// N is the order of the secp256k1 base point group (Fq in the spec).
	N = s256Params.N

	halfN = new(big.Int).Rsh(N, 1)

	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)

	ErrOutOfRange = errors.New("value out of range for scalar field")
)

// Scalar is an element of Fq, the secp256k1 scalar field.
type Scalar struct {
	value big.Int
}

// RandomScalar samples a uniform, non-zero scalar from Fq\{0}.
func RandomScalar() (Scalar, error) {
	for {
		b := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, b); err != nil {
			return Scalar{}, errors.Wrap(err, "random read")
		}

		var v big.Int
		v.SetBytes(b)
		v.Mod(&v, N)
		if v.Sign() == 0 {
			continue
		}

		return Scalar{value: v}, nil
	}
}

// ScalarFromBytes interprets b as a big-endian integer and reduces it mod N.
func ScalarFromBytes(b []byte) Scalar {
	var v big.Int
	v.SetBytes(b)
	v.Mod(&v, N)
	return Scalar{value: v}
}

// ScalarFromInt wraps a small integer as a scalar. Used for HD path components.
func ScalarFromInt(i uint32) Scalar {
	var v big.Int
	v.SetUint64(uint64(i))
	return Scalar{value: v}
}

// HashToScalar reduces H(parts...) mod N, the hash-to-scalar primitive the spec's Schnorr and HD
// derivation operations build on.
func HashToScalar(parts ...[]byte) Scalar {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return ScalarFromBytes(h.Sum(nil))
}

func (s Scalar) IsZero() bool {
	return s.value.Sign() == 0
}

func (s Scalar) Equal(o Scalar) bool {
	return s.value.Cmp(&o.value) == 0
}

func (s Scalar) Add(o Scalar) Scalar {
	var v big.Int
	v.Add(&s.value, &o.value)
	v.Mod(&v, N)
	return Scalar{value: v}
}

func (s Scalar) Sub(o Scalar) Scalar {
	var v big.Int
	v.Sub(&s.value, &o.value)
	v.Mod(&v, N)
	return Scalar{value: v}
}

func (s Scalar) Mul(o Scalar) Scalar {
	var v big.Int
	v.Mul(&s.value, &o.value)
	v.Mod(&v, N)
	return Scalar{value: v}
}

// Inverse returns the modular inverse of s within Fq. Zero has no inverse; for s == 0 it
// returns zero.
func (s Scalar) Inverse() Scalar {
	var v big.Int
	v.ModInverse(&s.value, N)
	return Scalar{value: v}
}

// Negate returns -s mod N.
func (s Scalar) Negate() Scalar {
	var v big.Int
	v.Neg(&s.value)
	v.Mod(&v, N)
	return Scalar{value: v}
}

// G returns s*G, the curve point from scalar-base multiplication.
func (s Scalar) G() Point {
	x, y := s256.ScalarBaseMult(s.value.Bytes())
	return Point{x: *x, y: *y}
}

// MulPoint multiplies a point by this scalar.
func (s Scalar) MulPoint(p Point) Point {
	x, y := s256.ScalarMult(&p.x, &p.y, s.value.Bytes())
	return Point{x: *x, y: *y}
}

// Bytes returns the 32-byte big-endian encoding of the scalar.
func (s Scalar) Bytes() []byte {
	b := s.value.Bytes()
	if len(b) >= 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// BigInt returns a copy of the underlying value. Exists for interop with the Paillier package,
// which must operate on raw big.Int plaintexts.
func (s Scalar) BigInt() *big.Int {
	var v big.Int
	v.Set(&s.value)
	return &v
}

// IsHighS reports whether s is in the upper half of the field, per the low-s normalization rule.
func (s Scalar) IsHighS() bool {
	return s.value.Cmp(halfN) == 1
}

// Normalized returns s if it is already low-s, or N-s otherwise, along with whether it flipped.
func (s Scalar) Normalized() (Scalar, bool) {
	if !s.IsHighS() {
		return s, false
	}
	return s.Negate(), true
}

func validateScalarBytes(b []byte) error {
	var zero [32]byte
	if len(b) == 32 && subtleEqual(b, zero[:]) {
		return ErrOutOfRange
	}

	var v big.Int
	v.SetBytes(b)
	if v.Cmp(N) >= 0 || v.Sign() == 0 {
		return ErrOutOfRange
	}
	return nil
}

func subtleEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
