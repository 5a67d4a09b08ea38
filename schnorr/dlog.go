// Package schnorr implements the Schnorr proof of knowledge of discrete log used throughout the
// two-party protocols to prove a party knows the secret behind a published point.
package schnorr

import (
	"io"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/curve"
)

// Proof is a non-interactive Schnorr proof of knowledge of x such that P = x*G. The challenge
// binds the full transcript (G, P, T) so proofs cannot be replayed against a different P.
type Proof struct {
	T curve.Point  // commitment: t*G for random t
	Z curve.Scalar // response: t + e*x
}

// Prove builds a proof that the prover knows x, the discrete log of p = x*G.
func Prove(x curve.Scalar, p curve.Point) (Proof, error) {
	t, err := curve.RandomScalar()
	if err != nil {
		return Proof{}, errors.Wrap(err, "random nonce")
	}

	T := t.G()
	e := challenge(p, T)
	z := t.Add(e.Mul(x))

	return Proof{T: T, Z: z}, nil
}

// Verify checks z*G == T + e*P, recomputing e from the transcript.
func (pr Proof) Verify(p curve.Point) bool {
	e := challenge(p, pr.T)
	lhs := pr.Z.G()
	rhs := pr.T.Add(e.MulPoint(p))
	return lhs.Equal(rhs)
}

func challenge(p, t curve.Point) curve.Scalar {
	return curve.HashToScalar(curve.G().Bytes(), p.Bytes(), t.Bytes())
}

func (pr Proof) Serialize(w io.Writer) error {
	if err := pr.T.Serialize(w); err != nil {
		return errors.Wrap(err, "T")
	}
	if err := pr.Z.Serialize(w); err != nil {
		return errors.Wrap(err, "Z")
	}
	return nil
}

func (pr *Proof) Deserialize(r io.Reader) error {
	if err := pr.T.Deserialize(r); err != nil {
		return errors.Wrap(err, "T")
	}
	if err := pr.Z.Deserialize(r); err != nil {
		return errors.Wrap(err, "Z")
	}
	return nil
}
