package paillier

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/duovault/tss2p/curve"
)

// testKey is generated once for the whole package, since a 2048-bit modulus is expensive to
// generate and none of these tests depend on a fresh key per case.
var testKey *PrivateKey

func TestMain(m *testing.M) {
	priv, err := GenerateKeyPair(MinModulusBits)
	if err != nil {
		panic(err)
	}
	testKey = priv
	m.Run()
}

func Test_GenerateKeyPairRejectsSmallModulus(t *testing.T) {
	if _, err := GenerateKeyPair(1024); err == nil {
		t.Fatalf("expected small modulus to be rejected")
	}
}

func Test_EncryptDecryptRoundtrip(t *testing.T) {
	m := big.NewInt(123456789)

	c, _, err := testKey.Encrypt(m)
	if err != nil {
		t.Fatalf("Failed to encrypt : %s", err)
	}

	got := testKey.Decrypt(c)
	if got.Cmp(m) != 0 {
		t.Fatalf("decrypt mismatch : got %s, want %s", got, m)
	}
}

func Test_HomomorphicAdd(t *testing.T) {
	m1 := big.NewInt(111)
	m2 := big.NewInt(222)

	c1, _, err := testKey.Encrypt(m1)
	if err != nil {
		t.Fatalf("Failed to encrypt m1 : %s", err)
	}
	c2, _, err := testKey.Encrypt(m2)
	if err != nil {
		t.Fatalf("Failed to encrypt m2 : %s", err)
	}

	sum := testKey.HomomorphicAdd(c1, c2)
	got := testKey.Decrypt(sum)

	want := new(big.Int).Add(m1, m2)
	if got.Cmp(want) != 0 {
		t.Fatalf("homomorphic add mismatch : got %s, want %s", got, want)
	}
}

func Test_HomomorphicAddPlain(t *testing.T) {
	m := big.NewInt(111)
	k := big.NewInt(50)

	c, _, err := testKey.Encrypt(m)
	if err != nil {
		t.Fatalf("Failed to encrypt : %s", err)
	}

	added := testKey.HomomorphicAddPlain(c, k)
	got := testKey.Decrypt(added)

	want := new(big.Int).Add(m, k)
	if got.Cmp(want) != 0 {
		t.Fatalf("homomorphic add-plain mismatch : got %s, want %s", got, want)
	}
}

func Test_HomomorphicScale(t *testing.T) {
	m := big.NewInt(7)
	k := big.NewInt(6)

	c, _, err := testKey.Encrypt(m)
	if err != nil {
		t.Fatalf("Failed to encrypt : %s", err)
	}

	scaled := testKey.HomomorphicScale(c, k)
	got := testKey.Decrypt(scaled)

	want := new(big.Int).Mul(m, k)
	if got.Cmp(want) != 0 {
		t.Fatalf("homomorphic scale mismatch : got %s, want %s", got, want)
	}
}

func Test_PrivateKeySerializeRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	if err := testKey.Serialize(&buf); err != nil {
		t.Fatalf("Failed to serialize key : %s", err)
	}

	var got PrivateKey
	if err := got.Deserialize(&buf); err != nil {
		t.Fatalf("Failed to deserialize key : %s", err)
	}

	m := big.NewInt(42)
	c, _, err := testKey.Encrypt(m)
	if err != nil {
		t.Fatalf("Failed to encrypt : %s", err)
	}

	decrypted := got.Decrypt(c)
	if decrypted.Cmp(m) != 0 {
		t.Fatalf("decrypt with deserialized key mismatch : got %s, want %s", decrypted, m)
	}
}

func Test_RangeProofProveVerify(t *testing.T) {
	x, err := curve.RandomScalar()
	if err != nil {
		t.Fatalf("Failed to generate scalar : %s", err)
	}
	p := x.G()

	c, r, err := testKey.Encrypt(x.BigInt())
	if err != nil {
		t.Fatalf("Failed to encrypt : %s", err)
	}

	proof, err := Prove(&testKey.PublicKey, x.BigInt(), r, p, c)
	if err != nil {
		t.Fatalf("Failed to build range proof : %s", err)
	}

	if !proof.Verify(&testKey.PublicKey, p, c) {
		t.Fatalf("valid range proof failed to verify")
	}
}

func Test_RangeProofRejectsMismatchedPoint(t *testing.T) {
	x, err := curve.RandomScalar()
	if err != nil {
		t.Fatalf("Failed to generate scalar : %s", err)
	}
	p := x.G()

	c, r, err := testKey.Encrypt(x.BigInt())
	if err != nil {
		t.Fatalf("Failed to encrypt : %s", err)
	}

	proof, err := Prove(&testKey.PublicKey, x.BigInt(), r, p, c)
	if err != nil {
		t.Fatalf("Failed to build range proof : %s", err)
	}

	other, err := curve.RandomScalar()
	if err != nil {
		t.Fatalf("Failed to generate scalar : %s", err)
	}

	if proof.Verify(&testKey.PublicKey, other.G(), c) {
		t.Fatalf("range proof verified against the wrong point")
	}
}

func Test_RangeProofSerializeRoundtrip(t *testing.T) {
	x, err := curve.RandomScalar()
	if err != nil {
		t.Fatalf("Failed to generate scalar : %s", err)
	}
	p := x.G()

	c, r, err := testKey.Encrypt(x.BigInt())
	if err != nil {
		t.Fatalf("Failed to encrypt : %s", err)
	}

	proof, err := Prove(&testKey.PublicKey, x.BigInt(), r, p, c)
	if err != nil {
		t.Fatalf("Failed to build range proof : %s", err)
	}

	var buf bytes.Buffer
	if err := proof.Serialize(&buf); err != nil {
		t.Fatalf("Failed to serialize proof : %s", err)
	}

	var got RangeProof
	if err := got.Deserialize(&buf); err != nil {
		t.Fatalf("Failed to deserialize proof : %s", err)
	}

	if !got.Verify(&testKey.PublicKey, p, c) {
		t.Fatalf("deserialized range proof failed to verify")
	}
}

func Test_PublicKeyJSONRoundtrip(t *testing.T) {
	data, err := testKey.PublicKey.MarshalJSON()
	if err != nil {
		t.Fatalf("Failed to marshal public key : %s", err)
	}

	var got PublicKey
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("Failed to unmarshal public key : %s", err)
	}

	if got.N.Cmp(testKey.N) != 0 {
		t.Fatalf("public key N mismatch after JSON roundtrip")
	}
}
