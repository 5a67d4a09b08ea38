package auth

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/duovault/tss2p/protocol"
)

// TokenVerifier validates an opaque bearer token and returns the subject it was issued for. The
// concrete verification (signature check against an identity provider's key set, expiry, issuer)
// is supplied by the caller; OIDCAuthenticator only wires that result into the Authenticator
// interface the transport layer expects.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (subject string, err error)
}

// OIDCAuthenticator resolves the caller's user id by verifying the bearer token against an OIDC
// provider's published keys.
type OIDCAuthenticator struct {
	Verifier TokenVerifier
}

func NewOIDCAuthenticator(verifier TokenVerifier) *OIDCAuthenticator {
	return &OIDCAuthenticator{Verifier: verifier}
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, r *http.Request) (string, error) {
	token, err := bearerToken(r)
	if err != nil {
		return "", err
	}

	subject, err := a.Verifier.Verify(ctx, token)
	if err != nil {
		return "", errors.Wrap(protocol.ErrUnauthorized, err.Error())
	}
	if subject == "" {
		return "", errors.Wrap(protocol.ErrUnauthorized, "empty subject")
	}

	return subject, nil
}
