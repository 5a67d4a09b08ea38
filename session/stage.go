// Package session tracks wallet protocol sessions: the stage each session has reached, its
// accumulated artifacts (commitments, openings, partial shares), and the TTL that reclaims it if
// the counterparty never completes the flow.
package session

// Stage is a session's position within one of the wallet protocols, tracked explicitly as a tagged
// enum rather than inferred from which fields happen to be populated, so a corrupted or replayed
// message can never be mistaken for legitimate progress.
type Stage int

const (
	StageUnknown Stage = iota

	// KeyGen
	StageKeyGenP1Committed
	StageKeyGenP2Responded
	StageKeyGenComplete

	// Chain code agreement
	StageChainP1Committed
	StageChainP2Responded
	StageChainComplete

	// Signing
	StageSignP2First
	StageSignP1First
	StageSignComplete

	// Rotation
	StageRotateP1Committed
	StageRotateP2Responded
	StageRotateComplete

	// Escrow / recovery
	StageEscrowPending
	StageEscrowComplete
)

func (s Stage) String() string {
	switch s {
	case StageKeyGenP1Committed:
		return "keygen_p1_committed"
	case StageKeyGenP2Responded:
		return "keygen_p2_responded"
	case StageKeyGenComplete:
		return "keygen_complete"
	case StageChainP1Committed:
		return "chain_p1_committed"
	case StageChainP2Responded:
		return "chain_p2_responded"
	case StageChainComplete:
		return "chain_complete"
	case StageSignP2First:
		return "sign_p2_first"
	case StageSignP1First:
		return "sign_p1_first"
	case StageSignComplete:
		return "sign_complete"
	case StageRotateP1Committed:
		return "rotate_p1_committed"
	case StageRotateP2Responded:
		return "rotate_p2_responded"
	case StageRotateComplete:
		return "rotate_complete"
	case StageEscrowPending:
		return "escrow_pending"
	case StageEscrowComplete:
		return "escrow_complete"
	default:
		return "unknown"
	}
}

// canAdvance reports whether from -> to is an allowed transition, the one escape hatch that keeps
// the implicit-field-presence bugs the field-tag design replaces from creeping back in: any
// handler that tries to skip or repeat a stage out of order is rejected before it touches storage.
func canAdvance(from, to Stage) bool {
	transitions := map[Stage][]Stage{
		StageUnknown:            {StageKeyGenP1Committed, StageChainP1Committed, StageSignP2First, StageRotateP1Committed, StageEscrowPending},
		StageKeyGenP1Committed:  {StageKeyGenP2Responded},
		StageKeyGenP2Responded:  {StageKeyGenComplete},
		StageChainP1Committed:   {StageChainP2Responded},
		StageChainP2Responded:   {StageChainComplete},
		StageSignP2First:        {StageSignP1First},
		StageSignP1First:        {StageSignComplete},
		StageRotateP1Committed:  {StageRotateP2Responded},
		StageRotateP2Responded:  {StageRotateComplete},
		StageEscrowPending:      {StageEscrowComplete},
	}

	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
