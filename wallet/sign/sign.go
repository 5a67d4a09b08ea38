// Package sign implements two-party ECDSA signing. P2 picks an ephemeral nonce share and uses
// P1's Paillier public key to homomorphically blind a linear combination of the message hash and
// its own share; P1 decrypts, reduces, and recovers the final low-s signature with a recovery id.
package sign

import (
	"io"
	"math/big"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/curve"
	"github.com/duovault/tss2p/paillier"
	"github.com/duovault/tss2p/protocol"
	"github.com/duovault/tss2p/wallet/share"
)

// Signature is a completed two-party ECDSA signature over secp256k1, with a recovery id so the
// signer's public key can be recovered from (messageHash, R, S) alone.
type Signature struct {
	R     curve.Scalar
	S     curve.Scalar
	RecID byte
}

// P2State is P2's working state between SignFirst and SignSecond.
type P2State struct {
	K2 curve.Scalar
}

// P2FirstMessage carries P2's ephemeral point share; both ephemeral contributions are revealed
// directly because the nonce itself is never split homomorphically the way the private key is.
type P2FirstMessage struct {
	R2 curve.Point
}

// P2SignFirst samples P2's ephemeral nonce share k2 and publishes R2 = k2*G.
func P2SignFirst() (P2State, P2FirstMessage, error) {
	k2, err := curve.RandomScalar()
	if err != nil {
		return P2State{}, P2FirstMessage{}, errors.Wrap(err, "random k2")
	}
	return P2State{K2: k2}, P2FirstMessage{R2: k2.G()}, nil
}

// P1State is P1's working state between SignFirst and SignFinalize.
type P1State struct {
	K1     curve.Scalar
	RPoint curve.Point  // R = k1*k2*G, the full nonce point; its y-parity and x-overflow feed recid
	R      curve.Scalar // x-coordinate of R, reduced mod q
}

// P1FirstMessage carries P1's ephemeral point share.
type P1FirstMessage struct {
	R1 curve.Point
}

// P1SignFirst samples P1's ephemeral nonce share k1 and combines it with P2's R2 to derive the
// final nonce point R = k1*R2 = k1*k2*G.
func P1SignFirst(msg P2FirstMessage) (P1State, P1FirstMessage, error) {
	k1, err := curve.RandomScalar()
	if err != nil {
		return P1State{}, P1FirstMessage{}, errors.Wrap(err, "random k1")
	}

	r := k1.MulPoint(msg.R2)
	rScalar := curve.ScalarFromBytes(r.X().Bytes())

	return P1State{K1: k1, RPoint: r, R: rScalar}, P1FirstMessage{R1: k1.G()}, nil
}

// P2SecondMessage is the homomorphically-blinded ciphertext P2 sends back to P1: an encryption of
// rho*q + k2^-1*(m + r*x1*x2) under P1's Paillier key, where rho is random blinding that statistically
// hides x2 and m from P1's view of the partial decryption.
type P2SecondMessage struct {
	Ciphertext *big.Int
}

// P2SignSecond computes P1's partial and sends the blinded, homomorphically-combined ciphertext.
// msgHash is the 32-byte digest to sign, reduced mod q same as the curve order.
func P2SignSecond(state P2State, p1Msg P1FirstMessage, p2Share share.Party2, r curve.Scalar,
	msgHash []byte) (P2SecondMessage, error) {

	k2Inv := state.K2.Inverse()

	m := curve.ScalarFromBytes(msgHash)

	// rho blinds the result by a multiple of q, which P1 removes by reducing mod q; it never
	// changes the final s mod q but prevents P1 from learning k2^-1 directly from the ciphertext.
	rho, err := curve.RandomScalar()
	if err != nil {
		return P2SecondMessage{}, errors.Wrap(err, "random rho")
	}
	rhoQ := new(big.Int).Mul(rho.BigInt(), curve.N)

	// c = Enc(x1) ** (k2^-1 * r * x2) * Enc(k2^-1 * m) * Enc(rho*q), evaluated homomorphically:
	// this yields Enc(k2^-1*r*x1*x2 + k2^-1*m + rho*q) without P2 ever learning x1 or P1 learning
	// k2, m, x2. x1*x2 is the joint private key behind Q, so this is the term that must appear.
	exponent := new(big.Int).Mul(r.BigInt(), k2Inv.BigInt())
	exponent.Mul(exponent, p2Share.X2.BigInt())
	exponent.Mod(exponent, curve.N)

	c := p2Share.PaillierPub.HomomorphicScale(p2Share.Ciphertext, exponent)

	mTimesK2Inv := new(big.Int).Mul(m.BigInt(), k2Inv.BigInt())
	mTimesK2Inv.Mod(mTimesK2Inv, curve.N)

	c = p2Share.PaillierPub.HomomorphicAddPlain(c, mTimesK2Inv)
	c = p2Share.PaillierPub.HomomorphicAddPlain(c, rhoQ)

	return P2SecondMessage{Ciphertext: c}, nil
}

// P1SignFinalize decrypts the blinded ciphertext, reduces mod q, scales by k1^-1, normalizes to
// low-s, recovers the recovery id, and confirms the signature actually recovers to p1Share.Q
// (the master public key, or a derived child's, if p1Share was produced by hd.DeriveParty1).
// msgHash is the same digest P2 folded into its blinded ciphertext.
func P1SignFinalize(state P1State, p1Share share.Party1, msg P2SecondMessage,
	msgHash []byte) (Signature, error) {

	decrypted := p1Share.Paillier.Decrypt(msg.Ciphertext)
	decrypted.Mod(decrypted, curve.N)

	sPrime := curve.ScalarFromBytes(decrypted.Bytes())

	k1Inv := state.K1.Inverse()

	s := sPrime.Mul(k1Inv)

	if s.IsZero() || state.R.IsZero() {
		return Signature{}, protocol.Reject(nil, "degenerate signature, retry with fresh nonces")
	}

	// recid bit 0 is R's y-parity, bit 1 flags that R's raw x-coordinate overflowed the curve
	// order (vanishingly rare, but required for correct recovery when it happens). Negating S for
	// low-s normalization doesn't change R itself, but it inverts which of the two recoverable
	// public keys corresponds to this (r,s), so the parity bit must flip along with it.
	recID := byte(0)
	if state.RPoint.Bytes()[0]&1 == 1 {
		recID |= 1
	}
	if state.RPoint.X().Cmp(curve.N) >= 0 {
		recID |= 2
	}

	normalized, flipped := s.Normalized()
	if flipped {
		recID ^= 1
	}

	sig := Signature{R: state.R, S: normalized, RecID: recID}

	recovered, err := RecoverPublicKey(sig, msgHash)
	if err != nil {
		return Signature{}, errors.Wrap(err, "recover public key")
	}
	if !recovered.Equal(p1Share.Q) {
		return Signature{}, protocol.Reject(nil, "signature does not recover to the expected public key")
	}

	return sig, nil
}

// RecoverPublicKey reconstructs the signer's public key from a completed signature and its
// message hash: rebuild R from (r, recid), then Q = r^-1*(s*R - m*G).
func RecoverPublicKey(sig Signature, msgHash []byte) (curve.Point, error) {
	x := new(big.Int).Set(sig.R.BigInt())
	if sig.RecID&2 != 0 {
		x.Add(x, curve.N)
	}
	xBytes := make([]byte, 32)
	xb := x.Bytes()
	copy(xBytes[32-len(xb):], xb)

	prefix := byte(0x02)
	if sig.RecID&1 == 1 {
		prefix = 0x03
	}

	rPoint, err := curve.PointFromBytes(append([]byte{prefix}, xBytes...))
	if err != nil {
		return curve.Point{}, errors.Wrap(err, "rebuild nonce point from recid")
	}

	m := curve.ScalarFromBytes(msgHash)
	diff := sig.S.MulPoint(rPoint).Sub(m.G())
	return sig.R.Inverse().MulPoint(diff), nil
}

func (s P1State) Serialize(w io.Writer) error {
	if err := s.K1.Serialize(w); err != nil {
		return errors.Wrap(err, "k1")
	}
	if err := s.RPoint.Serialize(w); err != nil {
		return errors.Wrap(err, "r point")
	}
	if err := s.R.Serialize(w); err != nil {
		return errors.Wrap(err, "r")
	}
	return nil
}

func (s *P1State) Deserialize(r io.Reader) error {
	if err := s.K1.Deserialize(r); err != nil {
		return errors.Wrap(err, "k1")
	}
	if err := s.RPoint.Deserialize(r); err != nil {
		return errors.Wrap(err, "r point")
	}
	if err := s.R.Deserialize(r); err != nil {
		return errors.Wrap(err, "r")
	}
	return nil
}
