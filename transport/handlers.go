package transport

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/duovault/tss2p/curve"
	"github.com/duovault/tss2p/paillier"
	"github.com/duovault/tss2p/protocol"
	"github.com/duovault/tss2p/schnorr"
	"github.com/duovault/tss2p/session"
	"github.com/duovault/tss2p/wallet/chaincode"
	"github.com/duovault/tss2p/wallet/escrow"
	"github.com/duovault/tss2p/wallet/hd"
	"github.com/duovault/tss2p/wallet/keygen"
	"github.com/duovault/tss2p/wallet/rotate"
	"github.com/duovault/tss2p/wallet/share"
	"github.com/duovault/tss2p/wallet/sign"
)

const (
	fieldKeygenP1State = "keygen_p1_state"
	fieldChainP1State  = "chain_p1_state"
	fieldSignP1State   = "sign_p1_state"
	fieldRotateP1State = "rotate_p1_state"
	fieldRotatePending = "rotate_pending"
	fieldShare         = "p1_share"

	// shareSlot is the fixed slot the persisted master share lives under, scoped by user id alone.
	// Sign and rotate each run in a fresh per-operation session (a new session id per signature, per
	// rotation), so the share they need can't be addressed by that session's own id; it has to live
	// somewhere stable for the lifetime of the wallet instead.
	shareSlot = "wallet"
)

func (s *Server) keygenFirst(ctx context.Context, userID, _ string, _ []byte) (interface{},
	error) {

	sessionID := uuid.NewString()

	release, err := s.Store.Lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.Store.Begin(ctx, userID, sessionID, session.StageKeyGenP1Committed,
		session.DefaultTTL); err != nil {
		return nil, err
	}

	state, msg, err := keygen.P1KeyGenFirst()
	if err != nil {
		return nil, errors.Wrap(err, "p1 keygen first")
	}

	if err := s.Store.PutArtifact(ctx, userID, sessionID, fieldKeygenP1State, state,
		session.DefaultTTL); err != nil {
		return nil, err
	}

	return struct {
		SessionID  string `json:"session_id"`
		Commitment string `json:"commitment"`
	}{SessionID: sessionID, Commitment: msg.Commitment.String()}, nil
}

type keygenSecondRequest struct {
	P2     curve.Point   `json:"p2"`
	Proof2 schnorr.Proof `json:"proof2"`
}

type keygenSecondResponse struct {
	P1          curve.Point         `json:"p1"`
	Proof1      schnorr.Proof       `json:"proof1"`
	Message     string              `json:"opening_message"`
	Nonce       string              `json:"opening_nonce"`
	PaillierPub paillier.PublicKey  `json:"paillier_pub"`
	Ciphertext  string              `json:"ciphertext"`
	RangeProof  paillier.RangeProof `json:"range_proof"`
}

func (s *Server) keygenSecond(ctx context.Context, userID, sessionID string, body []byte) (
	interface{}, error) {

	release, err := s.Store.Lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	var req keygenSecondRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.Wrap(err, "decode request")
	}

	var state keygen.P1State
	if err := s.Store.GetArtifact(ctx, userID, sessionID, fieldKeygenP1State, &state); err != nil {
		return nil, err
	}

	p2Msg := keygen.P2FirstMessage{P2: req.P2, Proof2: req.Proof2}
	secondMsg, p1Share, err := keygen.P1KeyGenSecond(state, p2Msg)
	if err != nil {
		return nil, err
	}

	if err := s.Store.PutArtifact(ctx, userID, shareSlot, fieldShare, p1Share, 0); err != nil {
		return nil, err
	}

	if err := s.Store.Advance(ctx, userID, sessionID, session.StageKeyGenP2Responded,
		session.DefaultTTL); err != nil {
		return nil, err
	}

	return keygenSecondResponse{
		P1:          secondMsg.P1,
		Proof1:      secondMsg.Proof1,
		Message:     string(secondMsg.Opening.Message),
		Nonce:       hexString(secondMsg.Opening.Nonce[:]),
		PaillierPub: secondMsg.PaillierPub,
		Ciphertext:  hexString(secondMsg.Ciphertext.Bytes()),
		RangeProof:  secondMsg.RangeProof,
	}, nil
}

func (s *Server) chainFirst(ctx context.Context, userID, sessionID string, _ []byte) (
	interface{}, error) {

	release, err := s.Store.Lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.Store.Stage(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	state, msg, err := chaincode.P1ChainFirst()
	if err != nil {
		return nil, err
	}

	if err := s.Store.PutArtifact(ctx, userID, sessionID, fieldChainP1State, state,
		session.DefaultTTL); err != nil {
		return nil, err
	}

	return struct {
		Commitment string `json:"commitment"`
	}{Commitment: msg.Commitment.String()}, nil
}

type chainSecondRequest struct {
	Share curve.Scalar `json:"share"`
}

func (s *Server) chainSecond(ctx context.Context, userID, sessionID string, body []byte) (
	interface{}, error) {

	release, err := s.Store.Lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	var req chainSecondRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.Wrap(err, "decode request")
	}

	var state chaincode.P1State
	if err := s.Store.GetArtifact(ctx, userID, sessionID, fieldChainP1State, &state); err != nil {
		return nil, err
	}

	combined := chaincode.P1Combine(state.Share, req.Share)

	var p1Share share.Party1
	if err := s.Store.GetArtifact(ctx, userID, shareSlot, fieldShare, &p1Share); err != nil {
		return nil, err
	}
	p1Share.ChainCode = combined

	if err := s.Store.PutArtifact(ctx, userID, shareSlot, fieldShare, p1Share, 0); err != nil {
		return nil, err
	}

	if err := s.Store.Advance(ctx, userID, sessionID, session.StageKeyGenComplete,
		session.DefaultTTL); err != nil {
		return nil, err
	}

	return struct {
		Share   curve.Scalar `json:"share"`
		Message string       `json:"opening_message"`
		Nonce   string       `json:"opening_nonce"`
	}{
		Share:   state.Share,
		Message: string(state.Opening.Message),
		Nonce:   hexString(state.Opening.Nonce[:]),
	}, nil
}

func (s *Server) signFirst(ctx context.Context, userID, sessionID string, body []byte) (
	interface{}, error) {

	release, err := s.Store.Lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	var req struct {
		R2 curve.Point `json:"r2"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.Wrap(err, "decode request")
	}

	state, msg, err := sign.P1SignFirst(sign.P2FirstMessage{R2: req.R2})
	if err != nil {
		return nil, err
	}

	if err := s.Store.Begin(ctx, userID, sessionID, session.StageSignP1First,
		session.SignTTL); err != nil {
		return nil, err
	}

	if err := s.Store.PutArtifact(ctx, userID, sessionID, fieldSignP1State, state,
		session.SignTTL); err != nil {
		return nil, err
	}

	return struct {
		R1 curve.Point `json:"r1"`
	}{R1: msg.R1}, nil
}

// signSecondRequest carries the blinded ciphertext plus the material P1 needs to finalize against
// the right key: the message hash P2 folded into its ciphertext, and the two-level HD position
// (x_pos, y_pos) this signature is requested under. Every signature over the wire is for some
// derived address; signing directly with the underived master share is a wallet/sign library
// capability, not something this endpoint exposes.
type signSecondRequest struct {
	Message    string `json:"message"`
	Ciphertext string `json:"ciphertext"`
	XPos       uint32 `json:"x_pos"`
	YPos       uint32 `json:"y_pos"`
}

func (s *Server) signSecond(ctx context.Context, userID, sessionID string, body []byte) (
	interface{}, error) {

	release, err := s.Store.Lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	var req signSecondRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.Wrap(err, "decode request")
	}

	var state sign.P1State
	if err := s.Store.GetArtifact(ctx, userID, sessionID, fieldSignP1State, &state); err != nil {
		return nil, err
	}

	var p1Share share.Party1
	if err := s.Store.GetArtifact(ctx, userID, shareSlot, fieldShare, &p1Share); err != nil {
		return nil, err
	}

	// Both parties derive the same (x_pos, y_pos) child independently from public material; P2
	// folded its half into the blinded ciphertext already, so P1 only needs the child Q here, to
	// confirm the finished signature recovers to the key it was actually asked to sign under.
	derivedShare, _ := hd.DeriveParty1(p1Share, hd.Path{req.XPos, req.YPos})

	ciphertext, ok := parseBigInt(req.Ciphertext)
	if !ok {
		return nil, protocol.Reject(nil, "malformed ciphertext")
	}

	msgHash, ok := parseHexBytes(req.Message)
	if !ok {
		return nil, protocol.Reject(nil, "malformed message hash")
	}

	sig, err := sign.P1SignFinalize(state, derivedShare, sign.P2SecondMessage{Ciphertext: ciphertext},
		msgHash)
	if err != nil {
		return nil, err
	}

	if err := s.Store.Advance(ctx, userID, sessionID, session.StageSignComplete,
		session.SignTTL); err != nil {
		return nil, err
	}

	return struct {
		R     curve.Scalar `json:"r"`
		S     curve.Scalar `json:"s"`
		RecID byte         `json:"rec_id"`
	}{R: sig.R, S: sig.S, RecID: sig.RecID}, nil
}

func (s *Server) rotateFirst(ctx context.Context, userID, sessionID string, _ []byte) (
	interface{}, error) {

	release, err := s.Store.Lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.Store.Stage(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	state, msg, err := rotate.P1RotateFirst()
	if err != nil {
		return nil, err
	}

	if err := s.Store.PutArtifact(ctx, userID, sessionID, fieldRotateP1State, state,
		session.DefaultTTL); err != nil {
		return nil, err
	}

	return struct {
		Commitment string `json:"commitment"`
	}{Commitment: msg.Commitment.String()}, nil
}

func (s *Server) rotateSecond(ctx context.Context, userID, sessionID string, body []byte) (
	interface{}, error) {

	release, err := s.Store.Lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	var req struct {
		AlphaHalf curve.Scalar `json:"alpha_half"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.Wrap(err, "decode request")
	}

	var state rotate.P1State
	if err := s.Store.GetArtifact(ctx, userID, sessionID, fieldRotateP1State, &state); err != nil {
		return nil, err
	}

	var oldShare share.Party1
	if err := s.Store.GetArtifact(ctx, userID, shareSlot, fieldShare, &oldShare); err != nil {
		return nil, err
	}

	msg, pending, err := rotate.P1RotateSecond(state, oldShare, req.AlphaHalf)
	if err != nil {
		return nil, err
	}

	if err := s.Store.PutArtifact(ctx, userID, sessionID, fieldRotatePending, pending,
		session.DefaultTTL); err != nil {
		return nil, err
	}

	return struct {
		AlphaHalf   curve.Scalar        `json:"alpha_half"`
		Message     string              `json:"opening_message"`
		Nonce       string              `json:"opening_nonce"`
		PaillierPub paillier.PublicKey  `json:"paillier_pub"`
		Ciphertext  string              `json:"ciphertext"`
		RangeProof  paillier.RangeProof `json:"range_proof"`
	}{
		AlphaHalf:   msg.AlphaHalf,
		Message:     string(msg.Opening.Message),
		Nonce:       hexString(msg.Opening.Nonce[:]),
		PaillierPub: msg.PaillierPub,
		Ciphertext:  hexString(msg.Ciphertext),
		RangeProof:  msg.RangeProof,
	}, nil
}

// rotateAck is called once the client has confirmed it rotated its own share too, discarding the
// retained pre-rotation share and making the new one live.
func (s *Server) rotateAck(ctx context.Context, userID, sessionID string, _ []byte) (interface{},
	error) {

	release, err := s.Store.Lock(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	var pending rotate.Pending
	if err := s.Store.GetArtifact(ctx, userID, sessionID, fieldRotatePending, &pending); err != nil {
		return nil, err
	}

	if err := s.Store.PutArtifact(ctx, userID, shareSlot, fieldShare, pending.Ack(), 0); err != nil {
		return nil, err
	}

	if err := s.Store.Advance(ctx, userID, sessionID, session.StageRotateComplete,
		session.DefaultTTL); err != nil {
		return nil, err
	}

	return struct {
		Acknowledged bool `json:"acknowledged"`
	}{Acknowledged: true}, nil
}

func (s *Server) recover(ctx context.Context, userID, sessionID string, body []byte) (
	interface{}, error) {

	var req struct {
		RecoveryKey curve.Scalar  `json:"recovery_key"`
		P2          curve.Point   `json:"p2"`
		RecoveryPK  curve.Point   `json:"recovery_pk"`
		Segments    []escrow.Ciphertext `json:"segments"`
		Proof       escrow.Proof  `json:"proof"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.Wrap(err, "decode request")
	}

	bundle := escrow.Bundle{
		P2:         req.P2,
		RecoveryPK: req.RecoveryPK,
		Segments:   req.Segments,
		Proof:      req.Proof,
	}

	x2, err := escrow.Recover(bundle, req.RecoveryKey)
	if err != nil {
		return nil, err
	}

	return struct {
		X2 curve.Scalar `json:"x2"`
	}{X2: x2}, nil
}
