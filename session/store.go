package session

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/protocol"
	"github.com/duovault/tss2p/storage"
)

// DefaultTTL is how long a session may sit idle between messages before it is reclaimed. Signing
// sessions use a shorter TTL since a live signer is expected to complete the exchange quickly.
const (
	DefaultTTL = 10 * time.Minute
	SignTTL    = 2 * time.Minute
)

// Store persists session field values under (user, session, field) keyed paths in a generic
// storage.Storage backend, and serializes read-modify-write sequences per session so two
// concurrently-delivered messages for the same session can never race each other into storage.
type Store struct {
	backend storage.Storage
	locks   *lockTable
}

func NewStore(backend storage.Storage) *Store {
	return &Store{backend: backend, locks: newLockTable()}
}

func fieldKey(userID, sessionID, field string) string {
	return fmt.Sprintf("sessions/%s/%s/%s", userID, sessionID, field)
}

func metaKey(userID, sessionID string) string {
	return fieldKey(userID, sessionID, "_meta")
}

// meta is the small always-present record tracking a session's stage and expiry. Individual
// protocol artifacts (commitments, shares, proofs) are stored under their own field keys and
// referenced only by stage transitions, not by this record.
type meta struct {
	Stage     Stage
	ExpiresAt time.Time
}

// Lock acquires the per-(user,session) mutex, blocking until available or ctx is done. Callers
// must call the returned release function exactly once.
func (s *Store) Lock(ctx context.Context, userID, sessionID string) (func(), error) {
	return s.locks.lock(ctx, userID+"/"+sessionID)
}

// Begin creates a new session at initialStage with the given ttl, failing if one already exists
// for this (userID, sessionID) pair. Callers must hold the session lock before calling this.
func (s *Store) Begin(ctx context.Context, userID, sessionID string, initialStage Stage,
	ttl time.Duration) error {

	if _, err := s.readMeta(ctx, userID, sessionID); err == nil {
		return protocol.Reject(nil, "session already exists")
	}

	m := meta{Stage: initialStage, ExpiresAt: time.Now().Add(ttl)}
	return s.writeMeta(ctx, userID, sessionID, m, ttl)
}

// Advance validates and records a stage transition, refreshing the session's TTL. Callers must
// hold the session lock before calling this.
func (s *Store) Advance(ctx context.Context, userID, sessionID string, to Stage,
	ttl time.Duration) error {

	m, err := s.requireLive(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	if !canAdvance(m.Stage, to) {
		return protocol.Reject(nil, fmt.Sprintf("invalid stage transition %s -> %s", m.Stage, to))
	}

	m.Stage = to
	m.ExpiresAt = time.Now().Add(ttl)
	return s.writeMeta(ctx, userID, sessionID, m, ttl)
}

// Stage returns the session's current stage, failing with ErrSessionExpired/ErrSessionMissing if
// it is gone or past its TTL.
func (s *Store) Stage(ctx context.Context, userID, sessionID string) (Stage, error) {
	m, err := s.requireLive(ctx, userID, sessionID)
	if err != nil {
		return StageUnknown, err
	}
	return m.Stage, nil
}

func (s *Store) requireLive(ctx context.Context, userID, sessionID string) (meta, error) {
	m, err := s.readMeta(ctx, userID, sessionID)
	if err != nil {
		if errors.Cause(err) == storage.ErrNotFound {
			return meta{}, errors.Wrap(protocol.ErrSessionMissing, sessionID)
		}
		return meta{}, errors.Wrap(err, "read session meta")
	}
	if time.Now().After(m.ExpiresAt) {
		return meta{}, errors.Wrap(protocol.ErrSessionExpired, sessionID)
	}
	return m, nil
}

// PutArtifact persists a protocol artifact (a commitment, opening, partial share, whatever a
// stage needs to hand to the next stage) under field, with ttl as its storage TTL.
func (s *Store) PutArtifact(ctx context.Context, userID, sessionID, field string,
	value storage.Serializer, ttl time.Duration) error {

	var buf bytes.Buffer
	if err := value.Serialize(&buf); err != nil {
		return errors.Wrap(err, "serialize artifact")
	}

	opts := storage.NewOptions()
	opts.TTL = int64(ttl / time.Second)
	return s.backend.Write(ctx, fieldKey(userID, sessionID, field), buf.Bytes(), &opts)
}

// GetArtifact reads back a previously stored artifact into value.
func (s *Store) GetArtifact(ctx context.Context, userID, sessionID, field string,
	value storage.Deserializer) error {

	b, err := s.backend.Read(ctx, fieldKey(userID, sessionID, field))
	if err != nil {
		if errors.Cause(err) == storage.ErrNotFound {
			return errors.Wrap(protocol.ErrSessionMissing, field)
		}
		return errors.Wrap(err, "read artifact")
	}

	return value.Deserialize(bytes.NewReader(b))
}

// Delete removes every key associated with a session, used once a flow completes or a TTL sweep
// reclaims it.
func (s *Store) Delete(ctx context.Context, userID, sessionID string) error {
	prefix := fmt.Sprintf("sessions/%s/%s/", userID, sessionID)
	keys, err := s.backend.List(ctx, prefix)
	if err != nil {
		return errors.Wrap(err, "list session keys")
	}

	for _, key := range keys {
		if err := s.backend.Remove(ctx, key); err != nil {
			return errors.Wrapf(err, "remove %s", key)
		}
	}
	return nil
}

func (s *Store) readMeta(ctx context.Context, userID, sessionID string) (meta, error) {
	b, err := s.backend.Read(ctx, metaKey(userID, sessionID))
	if err != nil {
		return meta{}, err
	}

	var m meta
	if err := decodeMeta(b, &m); err != nil {
		return meta{}, errors.Wrap(err, "decode meta")
	}
	return m, nil
}

func (s *Store) writeMeta(ctx context.Context, userID, sessionID string, m meta,
	ttl time.Duration) error {

	b, err := encodeMeta(m)
	if err != nil {
		return errors.Wrap(err, "encode meta")
	}

	opts := storage.NewOptions()
	opts.TTL = int64(ttl / time.Second)
	return s.backend.Write(ctx, metaKey(userID, sessionID), b, &opts)
}

// ListExpired returns the (userID, sessionID) pairs whose meta record's TTL has passed, for use by
// the reaper. Backends that do not honor storage.Options.TTL themselves (e.g. the filesystem
// backend) rely entirely on this sweep to reclaim abandoned sessions.
func (s *Store) ListExpired(ctx context.Context) ([][2]string, error) {
	keys, err := s.backend.List(ctx, "sessions/")
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}

	var expired [][2]string
	now := time.Now()
	for _, key := range keys {
		userID, sessionID, field, ok := splitKey(key)
		if !ok || field != "_meta" {
			continue
		}

		b, err := s.backend.Read(ctx, key)
		if err != nil {
			continue
		}

		var m meta
		if err := decodeMeta(b, &m); err != nil {
			continue
		}

		if now.After(m.ExpiresAt) {
			expired = append(expired, [2]string{userID, sessionID})
		}
	}

	return expired, nil
}

func splitKey(key string) (userID, sessionID, field string, ok bool) {
	// sessions/<user>/<session>/<field>
	const prefix = "sessions/"
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return "", "", "", false
	}
	rest := key[len(prefix):]

	var parts []string
	start := 0
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			parts = append(parts, rest[start:i])
			start = i + 1
		}
	}
	parts = append(parts, rest[start:])

	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
