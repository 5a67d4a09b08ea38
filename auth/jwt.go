package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// JWTVerifier implements TokenVerifier by validating a signed JWT against a fixed public key and
// returning its subject claim. It is the concrete TokenVerifier an OIDCAuthenticator is typically
// built with once a provider's signing key has been fetched and cached by the caller.
type JWTVerifier struct {
	PublicKey interface{} // *rsa.PublicKey or *ecdsa.PublicKey, whichever the provider signs with
	Issuer    string
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return v.PublicKey, nil
	}, jwt.WithIssuer(v.Issuer), jwt.WithValidMethods([]string{"RS256", "ES256"}))
	if err != nil {
		return "", errors.Wrap(err, "parse token")
	}
	if !parsed.Valid {
		return "", errors.New("token not valid")
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", errors.Wrap(err, "subject claim")
	}

	return subject, nil
}
