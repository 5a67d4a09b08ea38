package curve

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/pkg/errors"
)

const CompressedLength = 33

var ErrInvalidPoint = errors.New("invalid curve point")

// Point is a point on the secp256k1 curve, used for public shares and public keys throughout the
// module.
type Point struct {
	x, y big.Int
}

// G returns the standard secp256k1 base point.
func G() Point {
	return Scalar{value: *bigOne}.G()
}

// X returns the point's affine x-coordinate, used to derive the r component of a signature from
// the ephemeral nonce point.
func (p Point) X() *big.Int {
	return new(big.Int).Set(&p.x)
}

// Infinity reports whether p is the point at infinity (used as a sentinel for "not yet set").
func (p Point) Infinity() bool {
	return p.x.Sign() == 0 && p.y.Sign() == 0
}

func (p Point) Equal(o Point) bool {
	return p.x.Cmp(&o.x) == 0 && p.y.Cmp(&o.y) == 0
}

func (p Point) Add(o Point) Point {
	x, y := s256.Add(&p.x, &p.y, &o.x, &o.y)
	return Point{x: *x, y: *y}
}

func (p Point) Negate() Point {
	var y big.Int
	y.Sub(s256Params.P, &p.y)
	var x big.Int
	x.Set(&p.x)
	return Point{x: x, y: y}
}

func (p Point) Sub(o Point) Point {
	return p.Add(o.Negate())
}

// Bytes returns the 33-byte SEC1 compressed encoding.
func (p Point) Bytes() []byte {
	out := make([]byte, CompressedLength)
	out[0] = byte(0x02) + byte(p.y.Bit(0))
	xb := p.x.Bytes()
	copy(out[CompressedLength-len(xb):], xb)
	return out
}

func (p Point) String() string {
	return hex.EncodeToString(p.Bytes())
}

// PointFromBytes decodes a 33-byte SEC1 compressed point.
func PointFromBytes(b []byte) (Point, error) {
	if len(b) != CompressedLength {
		return Point{}, errors.Wrapf(ErrInvalidPoint, "length %d", len(b))
	}

	var x big.Int
	x.SetBytes(b[1:])

	ySq := new(big.Int).Exp(&x, big.NewInt(3), nil)
	ySq.Add(ySq, s256Params.B)
	ySq.Mod(ySq, s256Params.P)

	y := new(big.Int).ModSqrt(ySq, s256Params.P)
	if y == nil {
		return Point{}, errors.Wrap(ErrInvalidPoint, "no square root")
	}

	wantOdd := b[0] == 0x03
	if (y.Bit(0) == 1) != wantOdd {
		y.Sub(s256Params.P, y)
	}

	if !s256.IsOnCurve(&x, y) {
		return Point{}, ErrInvalidPoint
	}

	return Point{x: x, y: *y}, nil
}

func (p Point) Serialize(w io.Writer) error {
	_, err := w.Write(p.Bytes())
	return err
}

func (p *Point) Deserialize(r io.Reader) error {
	b := make([]byte, CompressedLength)
	if _, err := io.ReadFull(r, b); err != nil {
		return errors.Wrap(err, "read point")
	}

	np, err := PointFromBytes(b)
	if err != nil {
		return err
	}
	*p = np
	return nil
}

func (p Point) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", p.String())), nil
}

func (p *Point) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return ErrInvalidPoint
	}

	b, err := hex.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return errors.Wrap(err, "hex decode")
	}

	np, err := PointFromBytes(b)
	if err != nil {
		return err
	}
	*p = np
	return nil
}
