// Package rotate implements key rotation: a fresh coin-flip produces a blinding factor alpha that
// re-randomizes both shares (x1 := alpha*x1, x2 := alpha^-1*x2) while leaving the joint public key
// Q unchanged. Rotation runs as a two-phase commit so a crash mid-rotation never strands either
// party on a half-updated share.
package rotate

import (
	"io"
	"math/big"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/commitment"
	"github.com/duovault/tss2p/curve"
	"github.com/duovault/tss2p/paillier"
	"github.com/duovault/tss2p/protocol"
	"github.com/duovault/tss2p/wallet/keygen"
	"github.com/duovault/tss2p/wallet/share"
)

// P1State is P1's working state between RotateFirst and RotateSecond.
type P1State struct {
	Alpha   curve.Scalar
	Opening commitment.Opening
}

// P1FirstMessage carries only the commitment to P1's half of alpha.
type P1FirstMessage struct {
	Commitment commitment.Commitment
}

// P1RotateFirst samples P1's half of the rotation blinding factor and commits to it.
func P1RotateFirst() (P1State, P1FirstMessage, error) {
	half, err := curve.RandomScalar()
	if err != nil {
		return P1State{}, P1FirstMessage{}, errors.Wrap(err, "random alpha half")
	}

	c, opening, err := commitment.Commit(half.Bytes())
	if err != nil {
		return P1State{}, P1FirstMessage{}, errors.Wrap(err, "commit")
	}

	return P1State{Alpha: half, Opening: opening}, P1FirstMessage{Commitment: c}, nil
}

// P2State is P2's working state across the rotation.
type P2State struct {
	AlphaHalf curve.Scalar
}

// P2FirstMessage reveals P2's half of alpha immediately.
type P2FirstMessage struct {
	AlphaHalf curve.Scalar
}

// P2RotateFirst samples P2's half of alpha.
func P2RotateFirst() (P2State, P2FirstMessage, error) {
	half, err := curve.RandomScalar()
	if err != nil {
		return P2State{}, P2FirstMessage{}, errors.Wrap(err, "random alpha half")
	}
	return P2State{AlphaHalf: half}, P2FirstMessage{AlphaHalf: half}, nil
}

// P1SecondMessage opens P1's commitment and, once alpha is known, carries the freshly re-encrypted
// x1 ciphertext and its PDL proof, re-keyed under a brand new Paillier keypair so no ciphertext
// from before the rotation remains meaningful.
type P1SecondMessage struct {
	AlphaHalf   curve.Scalar
	Opening     commitment.Opening
	PaillierPub paillier.PublicKey
	Ciphertext  []byte
	RangeProof  paillier.RangeProof
}

// Pending holds the not-yet-committed new share, retained alongside the old one until both sides
// acknowledge the rotation completed. Callers persist Pending (the transport keeps it under its
// "rotate_pending" session field) and only replace the live share once Ack is called.
type Pending struct {
	Old share.Party1
	New share.Party1
}

// P1RotateSecond opens the commitment, combines alpha, rotates x1 by alpha, and generates a new
// Paillier keypair for the rotated share (never reuse the old modulus across rotations).
func P1RotateSecond(state P1State, old share.Party1, theirHalf curve.Scalar) (P1SecondMessage,
	Pending, error) {

	alpha := state.Alpha.Add(theirHalf)

	newX1 := old.X1.Mul(alpha)

	priv, err := paillier.GenerateKeyPair(keygen.PaillierModulusBits)
	if err != nil {
		return P1SecondMessage{}, Pending{}, errors.Wrap(err, "generate paillier key")
	}

	ciphertext, r, err := priv.Encrypt(newX1.BigInt())
	if err != nil {
		return P1SecondMessage{}, Pending{}, errors.Wrap(err, "encrypt rotated x1")
	}

	newP1Point := newX1.G()
	rangeProof, err := paillier.Prove(&priv.PublicKey, newX1.BigInt(), r, newP1Point, ciphertext)
	if err != nil {
		return P1SecondMessage{}, Pending{}, errors.Wrap(err, "range proof")
	}

	newShare := old
	newShare.X1 = newX1
	newShare.Paillier = priv
	newShare.Ciphertext = ciphertext

	out := P1SecondMessage{
		AlphaHalf:   state.Alpha,
		Opening:     state.Opening,
		PaillierPub: priv.PublicKey,
		Ciphertext:  ciphertext.Bytes(),
		RangeProof:  rangeProof,
	}

	return out, Pending{Old: old, New: newShare}, nil
}

// P2RotateFinalize verifies P1's opening and range proof, derives x2 := alpha^-1*x2, and returns
// the rotated share. Q is unchanged by construction: (alpha*x1)*(alpha^-1*x2) = x1*x2.
func P2RotateFinalize(state P2State, old share.Party2, c1 commitment.Commitment,
	msg P1SecondMessage) (share.Party2, error) {

	if !msg.Opening.Verify(c1) {
		return share.Party2{}, protocol.Reject(nil, "rotation commitment opening invalid")
	}
	if string(msg.Opening.Message) != string(msg.AlphaHalf.Bytes()) {
		return share.Party2{}, protocol.Reject(nil, "rotation commitment message mismatch")
	}

	alpha := msg.AlphaHalf.Add(state.AlphaHalf)
	alphaInv := alpha.Inverse()

	newP1Point := alpha.MulPoint(old.P1Point)

	ciphertext := new(big.Int).SetBytes(msg.Ciphertext)
	if !msg.RangeProof.Verify(&msg.PaillierPub, newP1Point, ciphertext) {
		return share.Party2{}, protocol.Reject(nil, "rotation pdl range proof invalid")
	}

	newX2 := old.X2.Mul(alphaInv)

	newShare := old
	newShare.X2 = newX2
	newShare.P1Point = newP1Point
	newShare.PaillierPub = msg.PaillierPub
	newShare.Ciphertext = ciphertext

	return newShare, nil
}

// Ack finalizes a pending rotation once both parties have confirmed receipt, discarding the
// retained old share. Until Ack is called, callers must keep Pending.Old available so a dropped
// acknowledgement can be retried without desynchronizing the two parties.
func (p Pending) Ack() share.Party1 {
	return p.New
}

func (s P1State) Serialize(w io.Writer) error {
	if err := s.Alpha.Serialize(w); err != nil {
		return errors.Wrap(err, "alpha")
	}
	if err := s.Opening.Serialize(w); err != nil {
		return errors.Wrap(err, "opening")
	}
	return nil
}

func (s *P1State) Deserialize(r io.Reader) error {
	if err := s.Alpha.Deserialize(r); err != nil {
		return errors.Wrap(err, "alpha")
	}
	if err := s.Opening.Deserialize(r); err != nil {
		return errors.Wrap(err, "opening")
	}
	return nil
}

func (p Pending) Serialize(w io.Writer) error {
	if err := p.Old.Serialize(w); err != nil {
		return errors.Wrap(err, "old")
	}
	if err := p.New.Serialize(w); err != nil {
		return errors.Wrap(err, "new")
	}
	return nil
}

func (p *Pending) Deserialize(r io.Reader) error {
	if err := p.Old.Deserialize(r); err != nil {
		return errors.Wrap(err, "old")
	}
	if err := p.New.Deserialize(r); err != nil {
		return errors.Wrap(err, "new")
	}
	return nil
}
