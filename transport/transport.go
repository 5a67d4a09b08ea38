// Package transport exposes the two-party wallet protocol over HTTP, using Go 1.22's enhanced
// net/http.ServeMux pattern routing rather than an external router dependency: one route per
// protocol message, each delegating to exactly one wallet/* operation.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/tokenized/logger"

	"github.com/duovault/tss2p/auth"
	"github.com/duovault/tss2p/protocol"
	"github.com/duovault/tss2p/session"
)

// maxBodyBytes caps request bodies, generous for the small fixed-shape protocol messages this
// server ever receives.
const maxBodyBytes = 1 << 20

// Server wires authentication, the session store, and the wallet operation handlers into a
// single http.Handler.
type Server struct {
	Auth  auth.Authenticator
	Store *session.Store

	mux *http.ServeMux
}

func NewServer(authn auth.Authenticator, store *session.Store) *Server {
	s := &Server{Auth: authn, Store: store, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /ecdsa/keygen/first", s.handle(s.keygenFirst))
	s.mux.HandleFunc("POST /ecdsa/keygen/{id}/second", s.handle(s.keygenSecond))
	s.mux.HandleFunc("POST /ecdsa/keygen/{id}/chaincode/first", s.handle(s.chainFirst))
	s.mux.HandleFunc("POST /ecdsa/keygen/{id}/chaincode/second", s.handle(s.chainSecond))
	s.mux.HandleFunc("POST /ecdsa/sign/{id}/first", s.handle(s.signFirst))
	s.mux.HandleFunc("POST /ecdsa/sign/{id}/second", s.handle(s.signSecond))
	s.mux.HandleFunc("POST /ecdsa/rotate/{id}/first", s.handle(s.rotateFirst))
	s.mux.HandleFunc("POST /ecdsa/rotate/{id}/second", s.handle(s.rotateSecond))
	s.mux.HandleFunc("POST /ecdsa/rotate/{id}/ack", s.handle(s.rotateAck))
	s.mux.HandleFunc("POST /ecdsa/{id}/recover", s.handle(s.recover))
}

// opFunc is a single protocol operation: given the authenticated user, the session id from the
// path, and the decoded request body, it returns a response value to encode, or an error.
type opFunc func(ctx context.Context, userID, sessionID string, body []byte) (interface{}, error)

// handle wraps an opFunc with authentication, session-id extraction, and uniform error mapping,
// the same "one thin layer, one real layer" split the teacher's HTTP client code keeps between
// transport plumbing and protocol logic.
func (s *Server) handle(op opFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := s.Auth.Authenticate(ctx, r)
		if err != nil {
			writeError(ctx, w, http.StatusUnauthorized, err)
			return
		}

		body, err := readBody(r)
		if err != nil {
			writeError(ctx, w, http.StatusBadRequest, err)
			return
		}

		sessionID := r.PathValue("id")

		result, err := op(ctx, userID, sessionID, body)
		if err != nil {
			writeError(ctx, w, statusForError(err), err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, result)
	}
}

func statusForError(err error) int {
	switch errors.Cause(err) {
	case protocol.ErrUnauthorized:
		return http.StatusUnauthorized
	case protocol.ErrSessionMissing, protocol.ErrSessionExpired:
		return http.StatusNotFound
	case protocol.ErrReject, protocol.ErrSessionConsumed:
		return http.StatusConflict
	case protocol.ErrStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn(ctx, "encode response failed : %s", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	logger.Verbose(ctx, "request failed : %s", err)
	writeJSON(ctx, w, status, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}
