// Package commitment implements the hash commit-reveal primitive used by every coin-flip in this
// module: KeyGen's P1 commitment, the chain-code coin-flip, and the rotation coin-flip.
package commitment

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

const NonceSize = 32

// Commitment is H(msg || nonce), sent to the peer before the committer is willing to reveal msg.
type Commitment [32]byte

// Opening is the pair revealed to let the peer verify a prior Commitment.
type Opening struct {
	Message []byte
	Nonce   [NonceSize]byte
}

// Commit hashes msg together with a fresh random nonce and returns both the commitment to send
// now and the opening to send (and retain) for the reveal step.
func Commit(msg []byte) (Commitment, Opening, error) {
	var opening Opening
	if _, err := io.ReadFull(rand.Reader, opening.Nonce[:]); err != nil {
		return Commitment{}, Opening{}, errors.Wrap(err, "random nonce")
	}

	opening.Message = append([]byte(nil), msg...)
	return opening.commitment(), opening, nil
}

func (o Opening) commitment() Commitment {
	h := sha256.New()
	h.Write(o.Message)
	h.Write(o.Nonce[:])
	var c Commitment
	copy(c[:], h.Sum(nil))
	return c
}

// Verify recomputes H(o.Message || o.Nonce) and checks it against the previously-sent commitment.
// Binding and hiding hold in the random-oracle model as long as Nonce is never reused.
func (o Opening) Verify(c Commitment) bool {
	got := o.commitment()
	return bytes.Equal(got[:], c[:])
}

func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

func (c Commitment) Bytes() []byte {
	return c[:]
}

func (c Commitment) Serialize(w io.Writer) error {
	_, err := w.Write(c[:])
	return err
}

func (c *Commitment) Deserialize(r io.Reader) error {
	_, err := io.ReadFull(r, c[:])
	return err
}

func (o Opening) Serialize(w io.Writer) error {
	if err := writeBytes(w, o.Message); err != nil {
		return errors.Wrap(err, "message")
	}
	if _, err := w.Write(o.Nonce[:]); err != nil {
		return errors.Wrap(err, "nonce")
	}
	return nil
}

func (o *Opening) Deserialize(r io.Reader) error {
	msg, err := readBytes(r)
	if err != nil {
		return errors.Wrap(err, "message")
	}
	o.Message = msg

	if _, err := io.ReadFull(r, o.Nonce[:]); err != nil {
		return errors.Wrap(err, "nonce")
	}
	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	size := uint32(len(b))
	sizeBytes := []byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)}
	if _, err := w.Write(sizeBytes); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	sizeBytes := make([]byte, 4)
	if _, err := io.ReadFull(r, sizeBytes); err != nil {
		return nil, err
	}
	size := uint32(sizeBytes[0])<<24 | uint32(sizeBytes[1])<<16 | uint32(sizeBytes[2])<<8 |
		uint32(sizeBytes[3])

	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
