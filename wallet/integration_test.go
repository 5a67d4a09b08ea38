package wallet_test

import (
	"bytes"
	"testing"

	"github.com/duovault/tss2p/curve"
	"github.com/duovault/tss2p/wallet/chaincode"
	"github.com/duovault/tss2p/wallet/escrow"
	"github.com/duovault/tss2p/wallet/hd"
	"github.com/duovault/tss2p/wallet/keygen"
	"github.com/duovault/tss2p/wallet/rotate"
	"github.com/duovault/tss2p/wallet/share"
	"github.com/duovault/tss2p/wallet/sign"
)

func runKeyGen(t *testing.T) (*share.Party1, *share.Party2) {
	t.Helper()

	p1State, p1Msg, err := keygen.P1KeyGenFirst()
	if err != nil {
		t.Fatalf("Failed p1 keygen first : %s", err)
	}

	p2State, p2Msg, err := keygen.P2KeyGenFirst()
	if err != nil {
		t.Fatalf("Failed p2 keygen first : %s", err)
	}

	p1SecondMsg, p1Share, err := keygen.P1KeyGenSecond(p1State, p2Msg)
	if err != nil {
		t.Fatalf("Failed p1 keygen second : %s", err)
	}

	p2Share, err := keygen.P2KeyGenFinalize(p2State, p1Msg.Commitment, p1SecondMsg)
	if err != nil {
		t.Fatalf("Failed p2 keygen finalize : %s", err)
	}

	if !p1Share.Q.Equal(p2Share.Q) {
		t.Fatalf("joint public key mismatch right after keygen")
	}

	return p1Share, p2Share
}

func runChainCode(t *testing.T, p1Share *share.Party1, p2Share *share.Party2) {
	t.Helper()

	p1State, p1Msg, err := chaincode.P1ChainFirst()
	if err != nil {
		t.Fatalf("Failed p1 chain first : %s", err)
	}

	p2State, p2Msg, err := chaincode.P2ChainFirst()
	if err != nil {
		t.Fatalf("Failed p2 chain first : %s", err)
	}

	p1SecondMsg, p1Combined := chaincode.P1ChainSecond(p1State, p1Msg.Commitment)
	p1Share.ChainCode = chaincode.P1Combine(p1Combined, p2Msg.Share)

	p2Combined, err := chaincode.P2ChainFinalize(p2State, p1Msg.Commitment, p1SecondMsg)
	if err != nil {
		t.Fatalf("Failed p2 chain finalize : %s", err)
	}
	p2Share.ChainCode = p2Combined

	if !p1Share.ChainCode.Equal(p2Share.ChainCode) {
		t.Fatalf("chain code mismatch between parties")
	}
}

func runSign(t *testing.T, p1Share *share.Party1, p2Share *share.Party2,
	msgHash []byte) sign.Signature {

	t.Helper()

	p2State, p2Msg, err := sign.P2SignFirst()
	if err != nil {
		t.Fatalf("Failed p2 sign first : %s", err)
	}

	p1State, p1Msg, err := sign.P1SignFirst(p2Msg)
	if err != nil {
		t.Fatalf("Failed p1 sign first : %s", err)
	}

	r := p2State.K2.MulPoint(p1Msg.R1)
	rScalar := curve.ScalarFromBytes(r.X().Bytes())
	if !rScalar.Equal(p1State.R) {
		t.Fatalf("p1 and p2 disagree on the nonce point's x-coordinate")
	}

	p2SecondMsg, err := sign.P2SignSecond(p2State, p1Msg, *p2Share, rScalar, msgHash)
	if err != nil {
		t.Fatalf("Failed p2 sign second : %s", err)
	}

	sig, err := sign.P1SignFinalize(p1State, *p1Share, p2SecondMsg, msgHash)
	if err != nil {
		t.Fatalf("Failed p1 sign finalize : %s", err)
	}

	return sig
}

func verifyECDSA(t *testing.T, q curve.Point, msgHash []byte, sig sign.Signature) bool {
	t.Helper()

	m := curve.ScalarFromBytes(msgHash)
	sInv := sig.S.Inverse()

	u1 := m.Mul(sInv)
	u2 := sig.R.Mul(sInv)

	point := u1.G().Add(u2.MulPoint(q))
	got := curve.ScalarFromBytes(point.X().Bytes())

	return got.Equal(sig.R)
}

func runRotate(t *testing.T, p1Share *share.Party1, p2Share *share.Party2) {
	t.Helper()

	p1State, p1Msg, err := rotate.P1RotateFirst()
	if err != nil {
		t.Fatalf("Failed p1 rotate first : %s", err)
	}

	p2State, p2Msg, err := rotate.P2RotateFirst()
	if err != nil {
		t.Fatalf("Failed p2 rotate first : %s", err)
	}

	p1SecondMsg, pending, err := rotate.P1RotateSecond(p1State, *p1Share, p2Msg.AlphaHalf)
	if err != nil {
		t.Fatalf("Failed p1 rotate second : %s", err)
	}

	newP2Share, err := rotate.P2RotateFinalize(p2State, *p2Share, p1Msg.Commitment, p1SecondMsg)
	if err != nil {
		t.Fatalf("Failed p2 rotate finalize : %s", err)
	}

	*p1Share = pending.Ack()
	*p2Share = newP2Share

	if !p1Share.Q.Equal(p2Share.Q) {
		t.Fatalf("joint public key changed across rotation")
	}
}

// Test_FullWalletLifecycle runs KeyGen, chain-code agreement, HD derivation, signing both before
// and after a key rotation, and escrow recovery, end to end against the library APIs a real server
// and client would call.
func Test_FullWalletLifecycle(t *testing.T) {
	p1Share, p2Share := runKeyGen(t)
	runChainCode(t, p1Share, p2Share)

	msgHash := bytes.Repeat([]byte{0x11}, 32)
	sig := runSign(t, p1Share, p2Share, msgHash)
	if !verifyECDSA(t, p1Share.Q, msgHash, sig) {
		t.Fatalf("pre-rotation signature failed to verify against the joint public key")
	}

	path := hd.Path{0, 7, 3}
	derivedP1, q1 := hd.DeriveParty1(*p1Share, path)
	derivedP2, q2 := hd.DeriveParty2(*p2Share, path)
	if !q1.Equal(q2) {
		t.Fatalf("hd derivation disagreement between parties")
	}

	childMsgHash := bytes.Repeat([]byte{0x22}, 32)
	childSig := runSign(t, &derivedP1, &derivedP2, childMsgHash)
	if !verifyECDSA(t, q1, childMsgHash, childSig) {
		t.Fatalf("child-key signature failed to verify against the derived public key")
	}

	runRotate(t, p1Share, p2Share)

	postRotateMsgHash := bytes.Repeat([]byte{0x33}, 32)
	postRotateSig := runSign(t, p1Share, p2Share, postRotateMsgHash)
	if !verifyECDSA(t, p1Share.Q, postRotateMsgHash, postRotateSig) {
		t.Fatalf("post-rotation signature failed to verify against the (unchanged) joint public key")
	}

	recoveryKey, err := curve.RandomScalar()
	if err != nil {
		t.Fatalf("Failed to generate recovery key : %s", err)
	}
	bundle, _, err := escrow.Escrow(p2Share.X2, p2Share.X2.G(), recoveryKey.G())
	if err != nil {
		t.Fatalf("Failed to escrow x2 : %s", err)
	}
	if err := bundle.VerifyBundle(); err != nil {
		t.Fatalf("Failed to verify escrow bundle : %s", err)
	}

	recoveredX2, err := escrow.Recover(bundle, recoveryKey)
	if err != nil {
		t.Fatalf("Failed to recover x2 : %s", err)
	}
	if !recoveredX2.Equal(p2Share.X2) {
		t.Fatalf("recovered x2 does not match the live share")
	}

	rebuilt := escrow.RebuildShare(recoveredX2, *p2Share)
	if !rebuilt.Q.Equal(p2Share.Q) {
		t.Fatalf("rebuilt share lost its public key")
	}
}
