package chaincode

import (
	"bytes"
	"testing"
)

func Test_ChainCodeAgreementMatches(t *testing.T) {
	p1State, p1First, err := P1ChainFirst()
	if err != nil {
		t.Fatalf("Failed P1ChainFirst : %s", err)
	}

	p2State, p2First, err := P2ChainFirst()
	if err != nil {
		t.Fatalf("Failed P2ChainFirst : %s", err)
	}

	p1Second, p1Combined := P1ChainSecond(p1State, p1First.Commitment)
	p1Combined = P1Combine(p1Combined, p2First.Share)

	p2Combined, err := P2ChainFinalize(p2State, p1First.Commitment, p1Second)
	if err != nil {
		t.Fatalf("Failed P2ChainFinalize : %s", err)
	}

	if !p1Combined.Equal(p2Combined) {
		t.Fatalf("chain code mismatch : p1 %s, p2 %s", p1Combined, p2Combined)
	}
}

func Test_ChainCodeRejectsTamperedOpening(t *testing.T) {
	p1State, p1First, err := P1ChainFirst()
	if err != nil {
		t.Fatalf("Failed P1ChainFirst : %s", err)
	}

	p2State, _, err := P2ChainFirst()
	if err != nil {
		t.Fatalf("Failed P2ChainFirst : %s", err)
	}

	p1Second, _ := P1ChainSecond(p1State, p1First.Commitment)
	p1Second.Opening.Nonce[0] ^= 0xff

	if _, err := P2ChainFinalize(p2State, p1First.Commitment, p1Second); err == nil {
		t.Fatalf("expected P2ChainFinalize to reject a tampered opening")
	}
}

func Test_ChainCodeRejectsMismatchedShare(t *testing.T) {
	p1State, p1First, err := P1ChainFirst()
	if err != nil {
		t.Fatalf("Failed P1ChainFirst : %s", err)
	}

	p2State, _, err := P2ChainFirst()
	if err != nil {
		t.Fatalf("Failed P2ChainFirst : %s", err)
	}

	p1Second, _ := P1ChainSecond(p1State, p1First.Commitment)
	p1Second.Share = p1Second.Share.Add(p1Second.Share)

	if _, err := P2ChainFinalize(p2State, p1First.Commitment, p1Second); err == nil {
		t.Fatalf("expected P2ChainFinalize to reject a share that doesn't match the opening")
	}
}

func Test_P1StateSerializeRoundtrip(t *testing.T) {
	state, _, err := P1ChainFirst()
	if err != nil {
		t.Fatalf("Failed P1ChainFirst : %s", err)
	}

	var buf bytes.Buffer
	if err := state.Serialize(&buf); err != nil {
		t.Fatalf("Failed to serialize state : %s", err)
	}

	var got P1State
	if err := got.Deserialize(&buf); err != nil {
		t.Fatalf("Failed to deserialize state : %s", err)
	}

	if !got.Share.Equal(state.Share) {
		t.Fatalf("P1State roundtrip mismatch")
	}
}
