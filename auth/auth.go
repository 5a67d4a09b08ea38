// Package auth resolves the caller identity (a user id) from an incoming request's Authorization
// header, following the "Authorization: Bearer <token>" convention already used on the client side
// of this module's HTTP calls.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/protocol"
)

// Authenticator resolves a request to the user id whose session state it's allowed to touch.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (userID string, err error)
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.Wrap(protocol.ErrUnauthorized, "missing authorization header")
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.Wrap(protocol.ErrUnauthorized, "authorization header not a bearer token")
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", errors.Wrap(protocol.ErrUnauthorized, "empty bearer token")
	}

	return token, nil
}
