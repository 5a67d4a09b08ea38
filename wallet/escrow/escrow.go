// Package escrow implements verifiable escrow of P2's share: x2 is split into small segments,
// each El-Gamal encrypted under a recovery public key y that P2 does not control, together with a
// Σ-protocol proof that the segments correctly sum to x2 without revealing x2 itself. Recovery
// later uses the corresponding private key to decrypt each segment and brute-force its small
// discrete log, then reassembles x2.
package escrow

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/curve"
	"github.com/duovault/tss2p/protocol"
	"github.com/duovault/tss2p/wallet/share"
)

// SegmentBits is the bit width of each escrowed segment. Recovery brute-forces a discrete log over
// a space of this size per segment, so it must stay small enough to search quickly while large
// enough to keep the segment count (and proof size) reasonable.
const SegmentBits = 20

// segmentCount is how many SegmentBits-wide segments cover a full scalar.
var segmentCount = (256 + SegmentBits - 1) / SegmentBits

// Ciphertext is a single El-Gamal ciphertext (A, B) = (k*G, k*Y + m*G) encrypting segment value m
// under recovery public key Y.
type Ciphertext struct {
	A curve.Point
	B curve.Point
}

// Proof is the Σ-protocol transcript proving the segments correctly sum (with their positional
// weights) to the escrowed secret x2, without revealing x2 or any individual segment.
type Proof struct {
	T  curve.Point    // commitment to the blinding scalars, weighted the same way as the segments
	TA []curve.Point  // per-segment A-side commitments
	TB []curve.Point  // per-segment B-side commitments
	Z  []curve.Scalar // per-segment responses for the segment value
	ZK []curve.Scalar // per-segment responses for the El-Gamal randomness
}

// Bundle is what gets persisted and handed to a recovery operator: the ciphertexts, the proof, and
// the public key P2 = x2*G they are proven to correspond to.
type Bundle struct {
	P2         curve.Point
	RecoveryPK curve.Point
	Segments   []Ciphertext
	Proof      Proof
}

// segments splits x into segmentCount values of SegmentBits each, least-significant first, such
// that sum(segments[i] * 2^(i*SegmentBits)) == x.
func segments(x *big.Int) []*big.Int {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(SegmentBits))
	mask.Sub(mask, big.NewInt(1))

	out := make([]*big.Int, segmentCount)
	v := new(big.Int).Set(x)
	for i := 0; i < segmentCount; i++ {
		seg := new(big.Int).And(v, mask)
		out[i] = seg
		v.Rsh(v, uint(SegmentBits))
	}
	return out
}

func weight(i int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(i*SegmentBits))
}

// Escrow builds a Bundle escrowing x2 under recoveryPK, along with the proof that the published
// ciphertexts decrypt (under the corresponding private key) to segments summing to x2.
func Escrow(x2 curve.Scalar, p2Point curve.Point, recoveryPK curve.Point) (Bundle, []*big.Int,
	error) {

	segs := segments(x2.BigInt())

	cts := make([]Ciphertext, segmentCount)
	nonces := make([]*big.Int, segmentCount)
	for i, seg := range segs {
		k, err := curve.RandomScalar()
		if err != nil {
			return Bundle{}, nil, errors.Wrap(err, "random el-gamal nonce")
		}
		nonces[i] = k.BigInt()

		a := k.G()
		b := k.MulPoint(recoveryPK).Add(curve.ScalarFromBytes(seg.Bytes()).G())
		cts[i] = Ciphertext{A: a, B: b}
	}

	proof, err := proveSegments(x2, segs, nonces, cts, p2Point, recoveryPK)
	if err != nil {
		return Bundle{}, nil, errors.Wrap(err, "build proof")
	}

	return Bundle{P2: p2Point, RecoveryPK: recoveryPK, Segments: cts, Proof: proof}, segs, nil
}

func proveSegments(x2 curve.Scalar, segs, nonces []*big.Int, cts []Ciphertext, p2Point,
	recoveryPK curve.Point) (Proof, error) {

	betaSeg := make([]curve.Scalar, segmentCount)
	betaK := make([]curve.Scalar, segmentCount)
	ta := make([]curve.Point, segmentCount)
	tb := make([]curve.Point, segmentCount)

	// tWeighted accumulates sum(betaSeg[i] * 2^(i*bits)) * G, matching the weighting used to
	// recombine segments back into x2, so a single Schnorr-style response can bind the whole set.
	tWeighted := curve.Scalar{}
	for i := range segs {
		b1, err := curve.RandomScalar()
		if err != nil {
			return Proof{}, err
		}
		b2, err := curve.RandomScalar()
		if err != nil {
			return Proof{}, err
		}
		betaSeg[i] = b1
		betaK[i] = b2

		ta[i] = b2.G()
		tb[i] = b2.MulPoint(recoveryPK).Add(b1.G())

		w := curve.ScalarFromBytes(weight(i).Bytes())
		tWeighted = tWeighted.Add(w.Mul(b1))
	}
	t := tWeighted.G()

	e := challenge(p2Point, recoveryPK, cts, t, ta, tb)

	z := make([]curve.Scalar, segmentCount)
	zk := make([]curve.Scalar, segmentCount)
	for i := range segs {
		segScalar := curve.ScalarFromBytes(segs[i].Bytes())
		kScalar := curve.ScalarFromBytes(nonces[i].Bytes())
		z[i] = betaSeg[i].Add(e.Mul(segScalar))
		zk[i] = betaK[i].Add(e.Mul(kScalar))
	}

	return Proof{T: t, TA: ta, TB: tb, Z: z, ZK: zk}, nil
}

// VerifyBundle checks the proof without access to any secret: it confirms the ciphertexts are
// internally consistent with P2 and the proof's responses, so the segments genuinely reconstruct
// x2 under recoveryPK's matching private key.
func (b Bundle) VerifyBundle() error {
	if len(b.Segments) != segmentCount || len(b.Proof.Z) != segmentCount ||
		len(b.Proof.ZK) != segmentCount {
		return protocol.Reject(nil, "escrow bundle has wrong segment count")
	}

	e := challenge(b.P2, b.RecoveryPK, b.Segments, b.Proof.T, b.Proof.TA, b.Proof.TB)

	weighted := curve.Point{}
	first := true
	for i, ct := range b.Segments {
		lhsA := b.Proof.ZK[i].G()
		rhsA := b.Proof.TA[i].Add(e.MulPoint(ct.A))
		if !lhsA.Equal(rhsA) {
			return protocol.Reject(nil, "escrow segment a-side proof invalid")
		}

		lhsB := b.Proof.ZK[i].MulPoint(b.RecoveryPK).Add(b.Proof.Z[i].G())
		rhsB := b.Proof.TB[i].Add(e.MulPoint(ct.B))
		if !lhsB.Equal(rhsB) {
			return protocol.Reject(nil, "escrow segment b-side proof invalid")
		}

		w := curve.ScalarFromBytes(weight(i).Bytes())
		term := w.MulPoint(b.Proof.Z[i].G())
		if first {
			weighted = term
			first = false
		} else {
			weighted = weighted.Add(term)
		}
	}

	lhs := weighted
	rhs := b.Proof.T.Add(e.MulPoint(b.P2))
	if !lhs.Equal(rhs) {
		return protocol.Reject(nil, "escrow weighted sum proof invalid")
	}

	return nil
}

func challenge(p2Point, recoveryPK curve.Point, cts []Ciphertext, t curve.Point, ta,
	tb []curve.Point) curve.Scalar {

	parts := [][]byte{p2Point.Bytes(), recoveryPK.Bytes(), t.Bytes()}
	for i := range cts {
		parts = append(parts, cts[i].A.Bytes(), cts[i].B.Bytes(), ta[i].Bytes(), tb[i].Bytes())
	}
	return curve.HashToScalar(parts...)
}

// Recover decrypts each segment using the recovery private key and brute-forces its small discrete
// log, then reassembles x2. This is the sole path to reconstructing a client's share without its
// cooperation, intended for use only by an authorized recovery operator holding recoveryKey.
func Recover(b Bundle, recoveryKey curve.Scalar) (curve.Scalar, error) {
	if err := b.VerifyBundle(); err != nil {
		return curve.Scalar{}, errors.Wrap(err, "bundle failed verification")
	}

	total := curve.Scalar{}
	for i, ct := range b.Segments {
		// m*G = B - k*Y = B - recoveryKey*A
		shared := recoveryKey.MulPoint(ct.A)
		mG := ct.B.Sub(shared)

		seg, err := bruteForceDiscreteLog(mG)
		if err != nil {
			return curve.Scalar{}, errors.Wrapf(err, "segment %d", i)
		}

		w := weight(i)
		term := curve.ScalarFromBytes(new(big.Int).Mul(seg, w).Bytes())
		total = total.Add(term)
	}

	return total, nil
}

// bruteForceDiscreteLog finds m in [0, 2^SegmentBits) such that m*G == target, using a baby-step
// giant-step search so recovery stays fast even as SegmentBits grows.
func bruteForceDiscreteLog(target curve.Point) (*big.Int, error) {
	m := int64(1) << (SegmentBits / 2)

	babySteps := make(map[string]int64, m)
	acc := curve.Point{}
	g := curve.G()
	for j := int64(0); j < m; j++ {
		if j == 0 {
			babySteps[acc.String()] = 0
			continue
		}
		acc = acc.Add(g)
		babySteps[acc.String()] = j
	}

	mScalar := curve.ScalarFromBytes(big.NewInt(m).Bytes())
	giantStride := mScalar.G().Negate()

	gamma := target
	for i := int64(0); i <= m; i++ {
		if j, ok := babySteps[gamma.String()]; ok {
			return big.NewInt(i*m + j), nil
		}
		gamma = gamma.Add(giantStride)
	}

	return nil, protocol.Reject(nil, "discrete log not found in expected range")
}

// RebuildShare reconstructs a usable Party2 share from a recovered x2, the wallet's existing
// public state (Q, chain code, P1's public point and Paillier key), so a recovered wallet can
// resume HD derivation and signing exactly where it left off.
func RebuildShare(x2 curve.Scalar, old share.Party2) share.Party2 {
	rebuilt := old
	rebuilt.X2 = x2
	return rebuilt
}
