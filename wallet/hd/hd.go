// Package hd implements non-hardened child key derivation over the two-party master share,
// following the BIP32 "chain code + index" construction but keeping the derivation factor
// public, so it can be applied independently by each party without interaction. Because the
// joint key is multiplicative (Q = x1*x2*G, not x1*G + x2*G), the tweak itself must be
// multiplicative too: x1' = f*x1 with x2 left untouched gives Q' = f*x1*x2*G = f*Q, matching
// gotham-city's MasterKey::get_child, which scales one share by f_l rather than adding to it.
package hd

import (
	"encoding/binary"

	"github.com/duovault/tss2p/curve"
	"github.com/duovault/tss2p/wallet/share"
)

// Path is a sequence of non-hardened child indexes, applied left to right (path[0] is the
// shallowest level).
type Path []uint32

// factor computes H(chainCode || Q || level || index) mod q, the multiplicative tweak applied at
// one level of derivation. level distinguishes successive levels of the same path so that
// repeating an index at a different depth does not collide.
func factor(chainCode curve.Scalar, q curve.Point, level uint32, index uint32) curve.Scalar {
	var levelBytes, indexBytes [4]byte
	binary.BigEndian.PutUint32(levelBytes[:], level)
	binary.BigEndian.PutUint32(indexBytes[:], index)
	return curve.HashToScalar(chainCode.Bytes(), q.Bytes(), levelBytes[:], indexBytes[:])
}

// combinedFactor walks path, returning the cumulative product of each level's factor along with
// the resulting public key. Both parties compute this identically from (chainCode, Q) alone, so
// it never needs to cross the wire.
func combinedFactor(chainCode curve.Scalar, q curve.Point, path Path) (curve.Scalar, curve.Point) {
	f := curve.ScalarFromInt(1)

	for level, index := range path {
		fLevel := factor(chainCode, q, uint32(level), index)
		f = f.Mul(fLevel)
		q = fLevel.MulPoint(q)
	}

	return f, q
}

// DeriveParty1 applies path to P1's share, returning the new share (x1' = f*x1) and the
// resulting joint public key. x2 is untouched by non-hardened derivation; P1 can compute its own
// half of this alone.
func DeriveParty1(s share.Party1, path Path) (share.Party1, curve.Point) {
	f, q := combinedFactor(s.ChainCode, s.Q, path)

	out := s
	out.X1 = f.Mul(s.X1)
	out.Q = q
	return out, q
}

// DeriveParty2 applies the same path to P2's share. x2 is unchanged, but Enc(x1) must be rescaled
// by the same factor f so that sign's homomorphic combination uses Enc(x1') = Enc(f*x1) rather
// than the master ciphertext; otherwise a "derived" signature would still verify only against the
// master key. P1Point is similarly rescaled so P2's cached x1*G stays consistent with x1'.
func DeriveParty2(s share.Party2, path Path) (share.Party2, curve.Point) {
	f, q := combinedFactor(s.ChainCode, s.Q, path)

	out := s
	out.Q = q
	out.P1Point = f.MulPoint(s.P1Point)
	out.Ciphertext = s.PaillierPub.HomomorphicScale(s.Ciphertext, f.BigInt())
	return out, q
}
