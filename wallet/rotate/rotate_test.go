package rotate

import (
	"bytes"
	"testing"

	"github.com/duovault/tss2p/curve"
	"github.com/duovault/tss2p/paillier"
	"github.com/duovault/tss2p/wallet/share"
)

func testShares(t *testing.T) (share.Party1, share.Party2) {
	t.Helper()

	x1, err := curve.RandomScalar()
	if err != nil {
		t.Fatalf("Failed to generate x1 : %s", err)
	}
	x2, err := curve.RandomScalar()
	if err != nil {
		t.Fatalf("Failed to generate x2 : %s", err)
	}

	priv, err := paillier.GenerateKeyPair(paillier.MinModulusBits)
	if err != nil {
		t.Fatalf("Failed to generate paillier key : %s", err)
	}

	ciphertext, _, err := priv.Encrypt(x1.BigInt())
	if err != nil {
		t.Fatalf("Failed to encrypt x1 : %s", err)
	}

	q := x2.MulPoint(x1.G())

	p1 := share.Party1{X1: x1, Q: q, Paillier: priv, Ciphertext: ciphertext}
	p2 := share.Party2{
		X2:          x2,
		Q:           q,
		P1Point:     x1.G(),
		PaillierPub: priv.PublicKey,
		Ciphertext:  ciphertext,
	}
	return p1, p2
}

func Test_RotatePreservesJointPublicKey(t *testing.T) {
	p1, p2 := testShares(t)

	p1State, p1First, err := P1RotateFirst()
	if err != nil {
		t.Fatalf("Failed P1RotateFirst : %s", err)
	}

	p2State, p2First, err := P2RotateFirst()
	if err != nil {
		t.Fatalf("Failed P2RotateFirst : %s", err)
	}

	p1Second, pending, err := P1RotateSecond(p1State, p1, p2First.AlphaHalf)
	if err != nil {
		t.Fatalf("Failed P1RotateSecond : %s", err)
	}

	newP2, err := P2RotateFinalize(p2State, p2, p1First.Commitment, p1Second)
	if err != nil {
		t.Fatalf("Failed P2RotateFinalize : %s", err)
	}

	newP1 := pending.Ack()

	newQ := newP2.X2.MulPoint(newP1.X1.G())
	if !newQ.Equal(p1.Q) {
		t.Fatalf("rotation changed the joint public key : got %s, want %s", newQ, p1.Q)
	}

	if newP1.X1.Equal(p1.X1) {
		t.Fatalf("rotation left x1 unchanged")
	}
	if newP2.X2.Equal(p2.X2) {
		t.Fatalf("rotation left x2 unchanged")
	}
}

func Test_RotateRefreshesPaillierKey(t *testing.T) {
	p1, p2 := testShares(t)

	p1State, p1First, err := P1RotateFirst()
	if err != nil {
		t.Fatalf("Failed P1RotateFirst : %s", err)
	}

	p2State, p2First, err := P2RotateFirst()
	if err != nil {
		t.Fatalf("Failed P2RotateFirst : %s", err)
	}

	p1Second, pending, err := P1RotateSecond(p1State, p1, p2First.AlphaHalf)
	if err != nil {
		t.Fatalf("Failed P1RotateSecond : %s", err)
	}

	if _, err := P2RotateFinalize(p2State, p2, p1First.Commitment, p1Second); err != nil {
		t.Fatalf("Failed P2RotateFinalize : %s", err)
	}

	newP1 := pending.Ack()
	if newP1.Paillier.N.Cmp(p1.Paillier.N) == 0 {
		t.Fatalf("rotation reused the old Paillier modulus")
	}
}

func Test_RotateRejectsTamperedOpening(t *testing.T) {
	p1, p2 := testShares(t)

	p1State, p1First, err := P1RotateFirst()
	if err != nil {
		t.Fatalf("Failed P1RotateFirst : %s", err)
	}

	p2State, p2First, err := P2RotateFirst()
	if err != nil {
		t.Fatalf("Failed P2RotateFirst : %s", err)
	}

	p1Second, _, err := P1RotateSecond(p1State, p1, p2First.AlphaHalf)
	if err != nil {
		t.Fatalf("Failed P1RotateSecond : %s", err)
	}

	p1Second.Opening.Nonce[0] ^= 0xff

	if _, err := P2RotateFinalize(p2State, p2, p1First.Commitment, p1Second); err == nil {
		t.Fatalf("expected P2RotateFinalize to reject a tampered opening")
	}
}

func Test_RotateRejectsForgedRangeProof(t *testing.T) {
	p1, p2 := testShares(t)

	p1State, p1First, err := P1RotateFirst()
	if err != nil {
		t.Fatalf("Failed P1RotateFirst : %s", err)
	}

	p2State, p2First, err := P2RotateFirst()
	if err != nil {
		t.Fatalf("Failed P2RotateFirst : %s", err)
	}

	p1Second, _, err := P1RotateSecond(p1State, p1, p2First.AlphaHalf)
	if err != nil {
		t.Fatalf("Failed P1RotateSecond : %s", err)
	}

	p1Second.RangeProof.S.Add(p1Second.RangeProof.S, p1Second.RangeProof.S)

	if _, err := P2RotateFinalize(p2State, p2, p1First.Commitment, p1Second); err == nil {
		t.Fatalf("expected P2RotateFinalize to reject a forged range proof")
	}
}

func Test_PendingSerializeRoundtrip(t *testing.T) {
	p1, _ := testShares(t)

	p1State, _, err := P1RotateFirst()
	if err != nil {
		t.Fatalf("Failed P1RotateFirst : %s", err)
	}

	_, p2First, err := P2RotateFirst()
	if err != nil {
		t.Fatalf("Failed P2RotateFirst : %s", err)
	}

	_, pending, err := P1RotateSecond(p1State, p1, p2First.AlphaHalf)
	if err != nil {
		t.Fatalf("Failed P1RotateSecond : %s", err)
	}

	var buf bytes.Buffer
	if err := pending.Serialize(&buf); err != nil {
		t.Fatalf("Failed to serialize pending : %s", err)
	}

	var got Pending
	if err := got.Deserialize(&buf); err != nil {
		t.Fatalf("Failed to deserialize pending : %s", err)
	}

	if !got.New.X1.Equal(pending.New.X1) {
		t.Fatalf("Pending roundtrip mismatch")
	}
}
