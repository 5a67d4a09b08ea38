// Package keygen implements the two-party KeyGen protocol: P1 and P2 each contribute a secret
// share x1, x2 such that the joint public key is Q = x2*P1 = (x1*x2)*G, and neither party ever
// learns the other's share or the combined private key.
package keygen

import (
	"io"
	"math/big"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/commitment"
	"github.com/duovault/tss2p/curve"
	"github.com/duovault/tss2p/paillier"
	"github.com/duovault/tss2p/protocol"
	"github.com/duovault/tss2p/schnorr"
	"github.com/duovault/tss2p/wallet/share"
)

// PaillierModulusBits is the Paillier modulus size KeyGen requests for P1's keypair.
const PaillierModulusBits = 2048

// P1State is P1's private working state between KeyGenFirst and KeyGenSecond.
type P1State struct {
	X1      curve.Scalar
	P1      curve.Point
	Proof1  schnorr.Proof
	Opening commitment.Opening
}

// P1FirstMessage is the message P1 sends to P2 after KeyGenFirst: only the commitment, nothing
// that reveals x1 or P1 yet.
type P1FirstMessage struct {
	Commitment commitment.Commitment
}

// P1KeyGenFirst samples P1's share and commits to (P1, pi1) without revealing it yet.
func P1KeyGenFirst() (P1State, P1FirstMessage, error) {
	x1, err := curve.RandomScalar()
	if err != nil {
		return P1State{}, P1FirstMessage{}, errors.Wrap(err, "random x1")
	}

	p1Point := x1.G()

	proof1, err := schnorr.Prove(x1, p1Point)
	if err != nil {
		return P1State{}, P1FirstMessage{}, errors.Wrap(err, "prove x1")
	}

	msg := encodeP1Reveal(p1Point, proof1)

	c1, opening, err := commitment.Commit(msg)
	if err != nil {
		return P1State{}, P1FirstMessage{}, errors.Wrap(err, "commit")
	}

	state := P1State{X1: x1, P1: p1Point, Proof1: proof1, Opening: opening}
	return state, P1FirstMessage{Commitment: c1}, nil
}

// P2State is P2's private working state between KeyGenFirst and KeyGenFinalize.
type P2State struct {
	X2 curve.Scalar
}

// P2FirstMessage is P2's reply: its own point and proof, revealed immediately since P1 is still
// bound by its earlier commitment.
type P2FirstMessage struct {
	P2     curve.Point
	Proof2 schnorr.Proof
}

// P2KeyGenFirst samples P2's share and replies to P1's commitment with its own point and proof.
func P2KeyGenFirst() (P2State, P2FirstMessage, error) {
	x2, err := curve.RandomScalar()
	if err != nil {
		return P2State{}, P2FirstMessage{}, errors.Wrap(err, "random x2")
	}

	p2Point := x2.G()

	proof2, err := schnorr.Prove(x2, p2Point)
	if err != nil {
		return P2State{}, P2FirstMessage{}, errors.Wrap(err, "prove x2")
	}

	return P2State{X2: x2}, P2FirstMessage{P2: p2Point, Proof2: proof2}, nil
}

// P1SecondMessage is what P1 sends after verifying P2's proof: the opened commitment, P1's
// Paillier public key, the ciphertext of x1, and a PDL proof binding the two together.
type P1SecondMessage struct {
	P1          curve.Point
	Proof1      schnorr.Proof
	Opening     commitment.Opening
	PaillierPub paillier.PublicKey
	Ciphertext  *big.Int
	RangeProof  paillier.RangeProof
}

// P1KeyGenSecond verifies P2's proof, opens P1's earlier commitment, and additionally generates a
// Paillier keypair encrypting x1 along with a range proof binding the ciphertext to P1 = x1*G.
func P1KeyGenSecond(state P1State, msg P2FirstMessage) (P1SecondMessage, *share.Party1, error) {
	if !msg.Proof2.Verify(msg.P2) {
		return P1SecondMessage{}, nil, protocol.Reject(nil, "p2 proof of knowledge invalid")
	}

	priv, err := paillier.GenerateKeyPair(PaillierModulusBits)
	if err != nil {
		return P1SecondMessage{}, nil, errors.Wrap(err, "generate paillier key")
	}

	x1Int := state.X1.BigInt()
	ciphertext, r, err := priv.Encrypt(x1Int)
	if err != nil {
		return P1SecondMessage{}, nil, errors.Wrap(err, "encrypt x1")
	}

	rangeProof, err := paillier.Prove(&priv.PublicKey, x1Int, r, state.P1, ciphertext)
	if err != nil {
		return P1SecondMessage{}, nil, errors.Wrap(err, "range proof")
	}

	out := P1SecondMessage{
		P1:          state.P1,
		Proof1:      state.Proof1,
		Opening:     state.Opening,
		PaillierPub: priv.PublicKey,
		Ciphertext:  ciphertext,
		RangeProof:  rangeProof,
	}

	// Q is computed now from P1's side too, so both parties can cross-check in tests; P1's
	// authoritative Q is still a product of its own x1 with P2's P2 point, matching P2's formula.
	q := state.X1.MulPoint(msg.P2)

	p1Share := &share.Party1{
		X1:         state.X1,
		Q:          q,
		Paillier:   priv,
		Ciphertext: ciphertext,
	}

	return out, p1Share, nil
}

// P2KeyGenFinalize verifies the commitment opening, P1's proof of knowledge, and the PDL range
// proof, then computes the joint public key Q = x2*P1.
func P2KeyGenFinalize(state P2State, c1 commitment.Commitment, msg P1SecondMessage) (*share.Party2,
	error) {

	expected := encodeP1Reveal(msg.P1, msg.Proof1)
	if !msg.Opening.Verify(c1) {
		return nil, protocol.Reject(nil, "commitment opening invalid")
	}
	if string(msg.Opening.Message) != string(expected) {
		return nil, protocol.Reject(nil, "commitment message mismatch")
	}

	if !msg.Proof1.Verify(msg.P1) {
		return nil, protocol.Reject(nil, "p1 proof of knowledge invalid")
	}

	if !msg.RangeProof.Verify(&msg.PaillierPub, msg.P1, msg.Ciphertext) {
		return nil, protocol.Reject(nil, "pdl range proof invalid")
	}

	q := state.X2.MulPoint(msg.P1)

	return &share.Party2{
		X2:          state.X2,
		Q:           q,
		P1Point:     msg.P1,
		PaillierPub: msg.PaillierPub,
		Ciphertext:  msg.Ciphertext,
	}, nil
}

// Serialize persists the in-progress P1 state between the first and second KeyGen calls, which
// arrive as two separate HTTP requests with session storage in between.
func (s P1State) Serialize(w io.Writer) error {
	if err := s.X1.Serialize(w); err != nil {
		return errors.Wrap(err, "x1")
	}
	if err := s.P1.Serialize(w); err != nil {
		return errors.Wrap(err, "p1")
	}
	if err := s.Proof1.Serialize(w); err != nil {
		return errors.Wrap(err, "proof1")
	}
	if err := s.Opening.Serialize(w); err != nil {
		return errors.Wrap(err, "opening")
	}
	return nil
}

func (s *P1State) Deserialize(r io.Reader) error {
	if err := s.X1.Deserialize(r); err != nil {
		return errors.Wrap(err, "x1")
	}
	if err := s.P1.Deserialize(r); err != nil {
		return errors.Wrap(err, "p1")
	}
	if err := s.Proof1.Deserialize(r); err != nil {
		return errors.Wrap(err, "proof1")
	}
	if err := s.Opening.Deserialize(r); err != nil {
		return errors.Wrap(err, "opening")
	}
	return nil
}

func encodeP1Reveal(p curve.Point, proof schnorr.Proof) []byte {
	b := append([]byte{}, p.Bytes()...)
	b = append(b, proof.T.Bytes()...)
	b = append(b, proof.Z.Bytes()...)
	return b
}
