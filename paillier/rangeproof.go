package paillier

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/curve"
)

// rangeSlackBits controls how much slack the proof gives the committed value above q, the curve
// order. A larger slack makes the statistical hiding property tighter at the cost of a larger
// proof; 80 bits of slack is the conventional choice for this style of Σ-protocol.
const rangeSlackBits = 80

// RangeProof (the spec's PDL proof) shows that a Paillier ciphertext C = Enc(x) encrypts the same
// x whose discrete log is the published curve point P = x*G, without revealing x. It is a
// Σ-protocol over the group Z*_(N^2) x secp256k1, range-bounded so the committed value cannot wrap
// around the Paillier plaintext space (which would let a cheating prover forge the statement).
type RangeProof struct {
	Z       *big.Int   // Enc(alpha, rho): the Paillier commitment to the random mask
	ZPoint  curve.Point // alpha*G: the curve-side commitment to the same mask
	S       *big.Int   // alpha + e*x, the opened response (unreduced, carries range information)
	S1      *big.Int   // rho * r^e mod N, the response for the Paillier randomness
}

// Prove builds a RangeProof that ciphertext = Enc(x, r) under pub and p = x*G.
func Prove(pub *PublicKey, x, r *big.Int, p curve.Point, ciphertext *big.Int) (RangeProof, error) {
	// alpha is sampled from a range large enough to statistically mask e*x for any valid e, x.
	limit := new(big.Int).Lsh(curve.N, uint(curve.N.BitLen()+rangeSlackBits))
	alpha, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return RangeProof{}, errors.Wrap(err, "random alpha")
	}

	rho, err := randomUnit(pub.N)
	if err != nil {
		return RangeProof{}, errors.Wrap(err, "random rho")
	}

	z := pub.EncryptWithNonce(alpha, rho)
	zPoint := curve.ScalarFromBytes(alpha.Bytes()).G()

	e := challenge(pub, ciphertext, p, z, zPoint)
	eInt := e.BigInt()

	s := new(big.Int).Mul(eInt, x)
	s.Add(s, alpha)

	s1 := new(big.Int).Exp(r, eInt, pub.N)
	s1.Mul(s1, rho)
	s1.Mod(s1, pub.N)

	return RangeProof{Z: z, ZPoint: zPoint, S: s, S1: s1}, nil
}

// Verify checks the proof against the published ciphertext and curve point. It rejects if the
// revealed s falls outside the expected range, which is what prevents a cheating P1 from using a
// plaintext that wraps around N to defeat the binding between C and P.
func (pr RangeProof) Verify(pub *PublicKey, p curve.Point, ciphertext *big.Int) bool {
	limit := new(big.Int).Lsh(curve.N, uint(curve.N.BitLen()+rangeSlackBits))
	if pr.S.Sign() < 0 || pr.S.Cmp(limit) > 0 {
		return false
	}

	e := challenge(pub, ciphertext, p, pr.Z, pr.ZPoint)
	eInt := e.BigInt()

	// Paillier side: Enc(s, s1) should equal Z * C^e mod N^2.
	lhs := pub.EncryptWithNonce(pr.S, pr.S1)
	rhs := new(big.Int).Exp(ciphertext, eInt, pub.N2)
	rhs.Mul(rhs, pr.Z)
	rhs.Mod(rhs, pub.N2)
	if lhs.Cmp(rhs) != 0 {
		return false
	}

	// Curve side: s*G should equal ZPoint + e*P.
	sScalar := curve.ScalarFromBytes(new(big.Int).Mod(pr.S, curve.N).Bytes())
	lhsPoint := sScalar.G()
	rhsPoint := pr.ZPoint.Add(e.MulPoint(p))
	return lhsPoint.Equal(rhsPoint)
}

func challenge(pub *PublicKey, ciphertext *big.Int, p curve.Point, z *big.Int,
	zPoint curve.Point) curve.Scalar {

	return curve.HashToScalar(pub.N.Bytes(), ciphertext.Bytes(), p.Bytes(), z.Bytes(),
		zPoint.Bytes())
}

func (pr RangeProof) Serialize(w io.Writer) error {
	if err := writeBigInt(w, pr.Z); err != nil {
		return errors.Wrap(err, "z")
	}
	if err := pr.ZPoint.Serialize(w); err != nil {
		return errors.Wrap(err, "zpoint")
	}
	if err := writeBigInt(w, pr.S); err != nil {
		return errors.Wrap(err, "s")
	}
	if err := writeBigInt(w, pr.S1); err != nil {
		return errors.Wrap(err, "s1")
	}
	return nil
}

func (pr *RangeProof) Deserialize(r io.Reader) error {
	z, err := readBigInt(r)
	if err != nil {
		return errors.Wrap(err, "z")
	}
	pr.Z = z

	if err := pr.ZPoint.Deserialize(r); err != nil {
		return errors.Wrap(err, "zpoint")
	}

	s, err := readBigInt(r)
	if err != nil {
		return errors.Wrap(err, "s")
	}
	pr.S = s

	s1, err := readBigInt(r)
	if err != nil {
		return errors.Wrap(err, "s1")
	}
	pr.S1 = s1
	return nil
}
