// Package share defines the per-party master key share produced by KeyGen and consumed by every
// later stage (chain-code agreement, signing, rotation, escrow).
package share

import (
	"io"
	"math/big"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/curve"
	"github.com/duovault/tss2p/paillier"
)

// Party1 is the server-side share: the secret scalar x1, the joint public key Q, the chain code,
// and the Paillier keypair generated during KeyGen (used to blind-compute `s` at sign time).
type Party1 struct {
	X1         curve.Scalar
	Q          curve.Point
	ChainCode  curve.Scalar
	Paillier   *paillier.PrivateKey
	Ciphertext *big.Int // Enc(x1), handed to P2 at KeyGen so P2 can homomorphically use x1 at sign time
}

// Party2 is the client-side share: the secret scalar x2, the joint public key Q, the chain code,
// P1's Paillier public key, and the ciphertext of x1 P1 handed over (opaque to P2; only usable
// homomorphically during signing).
type Party2 struct {
	X2          curve.Scalar
	Q           curve.Point
	ChainCode   curve.Scalar
	P1Point     curve.Point // x1*G, learned during KeyGen and updated on each rotation
	PaillierPub paillier.PublicKey
	Ciphertext  *big.Int
}

// Zeroize overwrites P1's secret material. Callers must call this once a share is superseded, e.g.
// after a rotation or escrow recovery replaces it.
func (p1 *Party1) Zeroize() {
	if p1.Paillier != nil {
		p1.Paillier.Zeroize()
	}
	p1.X1 = curve.ScalarFromInt(0)
}

// Zeroize overwrites P2's secret material.
func (p2 *Party2) Zeroize() {
	p2.X2 = curve.ScalarFromInt(0)
}

func (p1 Party1) Serialize(w io.Writer) error {
	if err := p1.X1.Serialize(w); err != nil {
		return errors.Wrap(err, "x1")
	}
	if err := p1.Q.Serialize(w); err != nil {
		return errors.Wrap(err, "q")
	}
	if err := p1.ChainCode.Serialize(w); err != nil {
		return errors.Wrap(err, "chain code")
	}
	if err := p1.Paillier.Serialize(w); err != nil {
		return errors.Wrap(err, "paillier")
	}
	if err := writeBigInt(w, p1.Ciphertext); err != nil {
		return errors.Wrap(err, "ciphertext")
	}
	return nil
}

func (p1 *Party1) Deserialize(r io.Reader) error {
	if err := p1.X1.Deserialize(r); err != nil {
		return errors.Wrap(err, "x1")
	}
	if err := p1.Q.Deserialize(r); err != nil {
		return errors.Wrap(err, "q")
	}
	if err := p1.ChainCode.Deserialize(r); err != nil {
		return errors.Wrap(err, "chain code")
	}
	p1.Paillier = &paillier.PrivateKey{}
	if err := p1.Paillier.Deserialize(r); err != nil {
		return errors.Wrap(err, "paillier")
	}
	ciphertext, err := readBigInt(r)
	if err != nil {
		return errors.Wrap(err, "ciphertext")
	}
	p1.Ciphertext = ciphertext
	return nil
}

func (p2 Party2) Serialize(w io.Writer) error {
	if err := p2.X2.Serialize(w); err != nil {
		return errors.Wrap(err, "x2")
	}
	if err := p2.Q.Serialize(w); err != nil {
		return errors.Wrap(err, "q")
	}
	if err := p2.ChainCode.Serialize(w); err != nil {
		return errors.Wrap(err, "chain code")
	}
	if err := p2.P1Point.Serialize(w); err != nil {
		return errors.Wrap(err, "p1 point")
	}
	if err := p2.PaillierPub.Serialize(w); err != nil {
		return errors.Wrap(err, "paillier pub")
	}
	if err := writeBigInt(w, p2.Ciphertext); err != nil {
		return errors.Wrap(err, "ciphertext")
	}
	return nil
}

func (p2 *Party2) Deserialize(r io.Reader) error {
	if err := p2.X2.Deserialize(r); err != nil {
		return errors.Wrap(err, "x2")
	}
	if err := p2.Q.Deserialize(r); err != nil {
		return errors.Wrap(err, "q")
	}
	if err := p2.ChainCode.Deserialize(r); err != nil {
		return errors.Wrap(err, "chain code")
	}
	if err := p2.P1Point.Deserialize(r); err != nil {
		return errors.Wrap(err, "p1 point")
	}
	if err := p2.PaillierPub.Deserialize(r); err != nil {
		return errors.Wrap(err, "paillier pub")
	}
	ciphertext, err := readBigInt(r)
	if err != nil {
		return errors.Wrap(err, "ciphertext")
	}
	p2.Ciphertext = ciphertext
	return nil
}

func writeBigInt(w io.Writer, v *big.Int) error {
	b := v.Bytes()
	size := uint32(len(b))
	if _, err := w.Write([]byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)}); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBigInt(r io.Reader) (*big.Int, error) {
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
	return new(big.Int).SetBytes(b), nil
}
