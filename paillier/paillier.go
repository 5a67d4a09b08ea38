// Package paillier implements the additively homomorphic Paillier cryptosystem used to blind the
// two-party ECDSA signing computation: P1 encrypts its share under its own Paillier key, and P2
// homomorphically evaluates a linear function of it without ever decrypting.
package paillier

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

// MinModulusBits is the smallest N modulus size this package accepts. The spec requires N be
// "sufficiently large (>= 2048 bits)"; a smaller modulus is rejected before any secret touches it.
const MinModulusBits = 2048

var (
	bigOne = big.NewInt(1)

	ErrModulusTooSmall = errors.New("paillier modulus too small")
)

// PublicKey is the Paillier public key (N, and its square N^2 cached for repeated use).
type PublicKey struct {
	N  *big.Int
	N2 *big.Int
	G  *big.Int // generator, fixed to N+1 (the standard simplification)
}

// PrivateKey is the Paillier private key. Lambda and Mu follow the standard Paillier-Lindell
// construction from two random primes P and Q; the primes themselves are not kept.
type PrivateKey struct {
	PublicKey
	Lambda *big.Int
	Mu     *big.Int
}

// GenerateKeyPair creates a new Paillier keypair with an N of at least bits size. Rejects any
// request under MinModulusBits, mirroring the spec's "reject before any secret is used" rule.
func GenerateKeyPair(bits int) (*PrivateKey, error) {
	if bits < MinModulusBits {
		return nil, errors.Wrapf(ErrModulusTooSmall, "%d < %d", bits, MinModulusBits)
	}

	primeBits := bits / 2

	for {
		p, err := rand.Prime(rand.Reader, primeBits)
		if err != nil {
			return nil, errors.Wrap(err, "generate p")
		}
		q, err := rand.Prime(rand.Reader, primeBits)
		if err != nil {
			return nil, errors.Wrap(err, "generate q")
		}
		if p.Cmp(q) == 0 {
			continue
		}

		n := new(big.Int).Mul(p, q)
		if n.BitLen() < bits {
			continue
		}

		pMinus1 := new(big.Int).Sub(p, bigOne)
		qMinus1 := new(big.Int).Sub(q, bigOne)
		lambda := new(big.Int).Mul(pMinus1, qMinus1)
		// lambda = lcm(p-1, q-1); divide by gcd to reduce.
		gcd := new(big.Int).GCD(nil, nil, pMinus1, qMinus1)
		lambda.Div(lambda, gcd)

		n2 := new(big.Int).Mul(n, n)
		g := new(big.Int).Add(n, bigOne)

		mu, err := computeMu(g, lambda, n, n2)
		if err != nil {
			// Extremely unlikely with g = N+1, but retry with fresh primes if it happens.
			continue
		}

		return &PrivateKey{
			PublicKey: PublicKey{N: n, N2: n2, G: g},
			Lambda:    lambda,
			Mu:        mu,
		}, nil
	}
}

func computeMu(g, lambda, n, n2 *big.Int) (*big.Int, error) {
	x := new(big.Int).Exp(g, lambda, n2)
	l := lFunction(x, n)
	mu := new(big.Int).ModInverse(l, n)
	if mu == nil {
		return nil, errors.New("l(g^lambda) not invertible mod n")
	}
	return mu, nil
}

// lFunction computes L(x) = (x-1)/n, the standard Paillier decryption helper.
func lFunction(x, n *big.Int) *big.Int {
	l := new(big.Int).Sub(x, bigOne)
	l.Div(l, n)
	return l
}

// Encrypt returns Enc(m) = G^m * r^N mod N^2 for a fresh random r, and the r used (needed by
// callers that must later prove properties about the randomness, e.g. the PDL proof).
func (pub *PublicKey) Encrypt(m *big.Int) (ciphertext *big.Int, r *big.Int, err error) {
	r, err = randomUnit(pub.N)
	if err != nil {
		return nil, nil, errors.Wrap(err, "random r")
	}

	return pub.EncryptWithNonce(m, r), r, nil
}

// EncryptWithNonce encrypts with an explicitly supplied randomness value, used when a proof needs
// to rebuild a ciphertext deterministically.
func (pub *PublicKey) EncryptWithNonce(m, r *big.Int) *big.Int {
	mModN := new(big.Int).Mod(m, pub.N)

	gm := new(big.Int).Exp(pub.G, mModN, pub.N2)
	rn := new(big.Int).Exp(r, pub.N, pub.N2)

	c := new(big.Int).Mul(gm, rn)
	c.Mod(c, pub.N2)
	return c
}

// Decrypt recovers the plaintext m such that ciphertext = Enc(m), reduced into [0, N).
func (priv *PrivateKey) Decrypt(ciphertext *big.Int) *big.Int {
	x := new(big.Int).Exp(ciphertext, priv.Lambda, priv.N2)
	l := lFunction(x, priv.N)
	m := new(big.Int).Mul(l, priv.Mu)
	m.Mod(m, priv.N)
	return m
}

// HomomorphicAdd returns Enc(m1+m2) given Enc(m1) and Enc(m2).
func (pub *PublicKey) HomomorphicAdd(c1, c2 *big.Int) *big.Int {
	c := new(big.Int).Mul(c1, c2)
	return c.Mod(c, pub.N2)
}

// HomomorphicAddPlain returns Enc(m+k) given Enc(m) and a plaintext scalar k.
func (pub *PublicKey) HomomorphicAddPlain(c *big.Int, k *big.Int) *big.Int {
	enc := new(big.Int).Exp(pub.G, new(big.Int).Mod(k, pub.N), pub.N2)
	return pub.HomomorphicAdd(c, enc)
}

// HomomorphicScale returns Enc(m*k) given Enc(m) and a plaintext scalar k.
func (pub *PublicKey) HomomorphicScale(c *big.Int, k *big.Int) *big.Int {
	return new(big.Int).Exp(c, k, pub.N2)
}

// randomUnit samples a uniform element of (Z/nZ)* by rejection sampling.
func randomUnit(n *big.Int) (*big.Int, error) {
	for {
		r, err := rand.Int(rand.Reader, n)
		if err != nil {
			return nil, err
		}
		if r.Sign() == 0 {
			continue
		}
		if new(big.Int).GCD(nil, nil, r, n).Cmp(bigOne) == 0 {
			return r, nil
		}
	}
}
