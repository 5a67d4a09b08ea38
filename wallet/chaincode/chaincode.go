// Package chaincode implements chain-code agreement: a second commit-reveal coin-flip, identical
// in shape to KeyGen's, that lets P1 and P2 agree on a shared random chain code without either
// party being able to bias the result.
package chaincode

import (
	"io"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/commitment"
	"github.com/duovault/tss2p/curve"
	"github.com/duovault/tss2p/protocol"
)

// P1State is P1's working state between ChainFirst and ChainSecond.
type P1State struct {
	Share   curve.Scalar
	Opening commitment.Opening
}

// P1FirstMessage carries only the commitment.
type P1FirstMessage struct {
	Commitment commitment.Commitment
}

// P1ChainFirst samples P1's half of the chain code and commits to it.
func P1ChainFirst() (P1State, P1FirstMessage, error) {
	half, err := curve.RandomScalar()
	if err != nil {
		return P1State{}, P1FirstMessage{}, err
	}

	c, opening, err := commitment.Commit(half.Bytes())
	if err != nil {
		return P1State{}, P1FirstMessage{}, err
	}

	return P1State{Share: half, Opening: opening}, P1FirstMessage{Commitment: c}, nil
}

// P2State is P2's working state between ChainFirst and ChainFinalize.
type P2State struct {
	Share curve.Scalar
}

// P2FirstMessage reveals P2's half immediately, since P1 is already bound by its commitment.
type P2FirstMessage struct {
	Share curve.Scalar
}

// P2ChainFirst samples P2's half of the chain code.
func P2ChainFirst() (P2State, P2FirstMessage, error) {
	half, err := curve.RandomScalar()
	if err != nil {
		return P2State{}, P2FirstMessage{}, err
	}
	return P2State{Share: half}, P2FirstMessage{Share: half}, nil
}

// P1SecondMessage opens P1's commitment, revealing its half of the chain code.
type P1SecondMessage struct {
	Share   curve.Scalar
	Opening commitment.Opening
}

// P1ChainSecond opens the earlier commitment and returns P1's own half of the chain code; the
// combined chain code comes from P1Combine once P2's half is known.
func P1ChainSecond(state P1State, c1 commitment.Commitment) (P1SecondMessage, curve.Scalar) {
	return P1SecondMessage{Share: state.Share, Opening: state.Opening}, state.Share
}

// P2ChainFinalize verifies P1's opening and combines both halves into the agreed chain code.
func P2ChainFinalize(state P2State, c1 commitment.Commitment, msg P1SecondMessage) (curve.Scalar,
	error) {

	if !msg.Opening.Verify(c1) {
		return curve.Scalar{}, protocol.Reject(nil, "chain code commitment opening invalid")
	}
	if string(msg.Opening.Message) != string(msg.Share.Bytes()) {
		return curve.Scalar{}, protocol.Reject(nil, "chain code commitment message mismatch")
	}

	return msg.Share.Add(state.Share), nil
}

// P1Combine mirrors P2ChainFinalize's combination for P1, used once P1 has received P2's revealed
// share (delivered out of band in the message flow above, via P2FirstMessage.Share).
func P1Combine(mine curve.Scalar, theirs curve.Scalar) curve.Scalar {
	return mine.Add(theirs)
}

func (s P1State) Serialize(w io.Writer) error {
	if err := s.Share.Serialize(w); err != nil {
		return errors.Wrap(err, "share")
	}
	if err := s.Opening.Serialize(w); err != nil {
		return errors.Wrap(err, "opening")
	}
	return nil
}

func (s *P1State) Deserialize(r io.Reader) error {
	if err := s.Share.Deserialize(r); err != nil {
		return errors.Wrap(err, "share")
	}
	if err := s.Opening.Deserialize(r); err != nil {
		return errors.Wrap(err, "opening")
	}
	return nil
}
