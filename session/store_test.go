package session

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/commitment"
	"github.com/duovault/tss2p/protocol"
	"github.com/duovault/tss2p/storage"
)

func Test_BeginThenDuplicateRejected(t *testing.T) {
	store := NewStore(storage.NewMockStorage())
	ctx := context.Background()

	if err := store.Begin(ctx, "alice", "s1", StageKeyGenP1Committed, DefaultTTL); err != nil {
		t.Fatalf("Failed to begin session : %s", err)
	}

	if err := store.Begin(ctx, "alice", "s1", StageKeyGenP1Committed, DefaultTTL); err == nil {
		t.Fatalf("expected re-beginning an existing session to fail")
	}
}

func Test_AdvanceFollowsTransitionTable(t *testing.T) {
	store := NewStore(storage.NewMockStorage())
	ctx := context.Background()

	if err := store.Begin(ctx, "alice", "s1", StageKeyGenP1Committed, DefaultTTL); err != nil {
		t.Fatalf("Failed to begin session : %s", err)
	}

	if err := store.Advance(ctx, "alice", "s1", StageKeyGenP2Responded, DefaultTTL); err != nil {
		t.Fatalf("Failed to advance to a legal next stage : %s", err)
	}

	stage, err := store.Stage(ctx, "alice", "s1")
	if err != nil {
		t.Fatalf("Failed to read stage : %s", err)
	}
	if stage != StageKeyGenP2Responded {
		t.Fatalf("stage mismatch : got %s, want %s", stage, StageKeyGenP2Responded)
	}
}

func Test_AdvanceRejectsIllegalTransition(t *testing.T) {
	store := NewStore(storage.NewMockStorage())
	ctx := context.Background()

	if err := store.Begin(ctx, "alice", "s1", StageKeyGenP1Committed, DefaultTTL); err != nil {
		t.Fatalf("Failed to begin session : %s", err)
	}

	// Skipping straight to KeyGenComplete without passing through P2Responded must be rejected.
	if err := store.Advance(ctx, "alice", "s1", StageKeyGenComplete, DefaultTTL); err == nil {
		t.Fatalf("expected skipping a stage to be rejected")
	}
}

func Test_StageRejectsExpiredSession(t *testing.T) {
	store := NewStore(storage.NewMockStorage())
	ctx := context.Background()

	if err := store.Begin(ctx, "alice", "s1", StageKeyGenP1Committed, -time.Second); err != nil {
		t.Fatalf("Failed to begin session : %s", err)
	}

	if _, err := store.Stage(ctx, "alice", "s1"); err == nil {
		t.Fatalf("expected an already-expired session to be rejected")
	}
}

func Test_StageRejectsMissingSession(t *testing.T) {
	store := NewStore(storage.NewMockStorage())
	ctx := context.Background()

	if _, err := store.Stage(ctx, "alice", "never-began"); err == nil {
		t.Fatalf("expected a missing session to be rejected")
	}
}

func Test_PutGetArtifactRoundtrip(t *testing.T) {
	store := NewStore(storage.NewMockStorage())
	ctx := context.Background()

	_, opening, err := commitment.Commit([]byte("x1 reveal"))
	if err != nil {
		t.Fatalf("Failed to commit : %s", err)
	}

	if err := store.PutArtifact(ctx, "alice", "s1", "opening", opening, DefaultTTL); err != nil {
		t.Fatalf("Failed to put artifact : %s", err)
	}

	var got commitment.Opening
	if err := store.GetArtifact(ctx, "alice", "s1", "opening", &got); err != nil {
		t.Fatalf("Failed to get artifact : %s", err)
	}

	if !bytes.Equal(got.Message, opening.Message) || got.Nonce != opening.Nonce {
		t.Fatalf("artifact roundtrip mismatch")
	}
}

func Test_GetArtifactMissingReturnsSessionMissing(t *testing.T) {
	store := NewStore(storage.NewMockStorage())
	ctx := context.Background()

	var got commitment.Opening
	err := store.GetArtifact(ctx, "alice", "s1", "opening", &got)
	if err == nil {
		t.Fatalf("expected missing artifact to fail")
	}
	if errors.Cause(err) != protocol.ErrSessionMissing {
		t.Fatalf("missing artifact error : got %s, want %s", err, protocol.ErrSessionMissing)
	}
}

func Test_DeleteRemovesAllSessionKeys(t *testing.T) {
	store := NewStore(storage.NewMockStorage())
	ctx := context.Background()

	if err := store.Begin(ctx, "alice", "s1", StageKeyGenP1Committed, DefaultTTL); err != nil {
		t.Fatalf("Failed to begin session : %s", err)
	}

	_, opening, err := commitment.Commit([]byte("reveal"))
	if err != nil {
		t.Fatalf("Failed to commit : %s", err)
	}
	if err := store.PutArtifact(ctx, "alice", "s1", "opening", opening, DefaultTTL); err != nil {
		t.Fatalf("Failed to put artifact : %s", err)
	}

	if err := store.Delete(ctx, "alice", "s1"); err != nil {
		t.Fatalf("Failed to delete session : %s", err)
	}

	if _, err := store.Stage(ctx, "alice", "s1"); err == nil {
		t.Fatalf("expected stage to be gone after delete")
	}

	var got commitment.Opening
	if err := store.GetArtifact(ctx, "alice", "s1", "opening", &got); err == nil {
		t.Fatalf("expected artifact to be gone after delete")
	}
}

func Test_ListExpiredFindsOnlyExpiredSessions(t *testing.T) {
	store := NewStore(storage.NewMockStorage())
	ctx := context.Background()

	if err := store.Begin(ctx, "alice", "expired", StageSignP2First, -time.Second); err != nil {
		t.Fatalf("Failed to begin expired session : %s", err)
	}
	if err := store.Begin(ctx, "alice", "live", StageSignP2First, DefaultTTL); err != nil {
		t.Fatalf("Failed to begin live session : %s", err)
	}

	expired, err := store.ListExpired(ctx)
	if err != nil {
		t.Fatalf("Failed to list expired sessions : %s", err)
	}

	if len(expired) != 1 || expired[0][1] != "expired" {
		t.Fatalf("ListExpired mismatch : got %v", expired)
	}
}

func Test_LockSerializesAccess(t *testing.T) {
	store := NewStore(storage.NewMockStorage())
	ctx := context.Background()

	release, err := store.Lock(ctx, "alice", "s1")
	if err != nil {
		t.Fatalf("Failed to acquire lock : %s", err)
	}

	unlocked := make(chan struct{})
	go func() {
		release2, err := store.Lock(ctx, "alice", "s1")
		if err != nil {
			return
		}
		close(unlocked)
		release2()
	}()

	select {
	case <-unlocked:
		t.Fatalf("second lock acquired while first was still held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-unlocked:
	case <-time.After(time.Second):
		t.Fatalf("second lock never acquired after release")
	}
}
