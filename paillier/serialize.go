package paillier

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/pkg/errors"
)

// writeBigInt and readBigInt follow the length-prefixed big.Int encoding used throughout the
// teacher codebase's binary serializers (see bitcoin.Key.Bytes / Signature.Serialize).
func writeBigInt(w io.Writer, v *big.Int) error {
	b := v.Bytes()
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(b)))
	if _, err := w.Write(size[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBigInt(r io.Reader) (*big.Int, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(size[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

func (pub *PublicKey) Serialize(w io.Writer) error {
	return writeBigInt(w, pub.N)
}

func (pub *PublicKey) Deserialize(r io.Reader) error {
	n, err := readBigInt(r)
	if err != nil {
		return errors.Wrap(err, "N")
	}
	pub.N = n
	pub.N2 = new(big.Int).Mul(n, n)
	pub.G = new(big.Int).Add(n, bigOne)
	return nil
}

func (priv *PrivateKey) Serialize(w io.Writer) error {
	if err := priv.PublicKey.Serialize(w); err != nil {
		return errors.Wrap(err, "public")
	}
	if err := writeBigInt(w, priv.Lambda); err != nil {
		return errors.Wrap(err, "lambda")
	}
	if err := writeBigInt(w, priv.Mu); err != nil {
		return errors.Wrap(err, "mu")
	}
	return nil
}

func (priv *PrivateKey) Deserialize(r io.Reader) error {
	if err := priv.PublicKey.Deserialize(r); err != nil {
		return errors.Wrap(err, "public")
	}
	lambda, err := readBigInt(r)
	if err != nil {
		return errors.Wrap(err, "lambda")
	}
	priv.Lambda = lambda

	mu, err := readBigInt(r)
	if err != nil {
		return errors.Wrap(err, "mu")
	}
	priv.Mu = mu
	return nil
}

func (pub PublicKey) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", hex.EncodeToString(pub.N.Bytes()))), nil
}

func (pub *PublicKey) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return errors.New("invalid paillier public key json")
	}

	b, err := hex.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return errors.Wrap(err, "hex decode")
	}

	n := new(big.Int).SetBytes(b)
	pub.N = n
	pub.N2 = new(big.Int).Mul(n, n)
	pub.G = new(big.Int).Add(n, bigOne)
	return nil
}

// Bytes returns the serialized form, a convenience used by callers storing the key as an opaque
// blob in the session's field-tagged storage entries.
func (pub *PublicKey) Bytes() []byte {
	var buf bytes.Buffer
	_ = pub.Serialize(&buf)
	return buf.Bytes()
}

// Zeroize overwrites the private key's secret material. Callers must call this once the key is no
// longer needed for the life of the process (e.g. after a master share is rotated out).
func (priv *PrivateKey) Zeroize() {
	if priv.Lambda != nil {
		priv.Lambda.SetInt64(0)
	}
	if priv.Mu != nil {
		priv.Mu.SetInt64(0)
	}
}
