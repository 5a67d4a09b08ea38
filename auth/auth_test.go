package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_PassthroughAuthenticatorUsesBearerTokenAsUserID(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/ecdsa/keygen/first", nil)
	r.Header.Set("Authorization", "Bearer alice-token")

	var authn PassthroughAuthenticator
	userID, err := authn.Authenticate(context.Background(), r)
	if err != nil {
		t.Fatalf("Failed to authenticate : %s", err)
	}
	if userID != "alice-token" {
		t.Fatalf("user id mismatch : got %q, want %q", userID, "alice-token")
	}
}

func Test_PassthroughAuthenticatorRejectsMissingHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/ecdsa/keygen/first", nil)

	var authn PassthroughAuthenticator
	if _, err := authn.Authenticate(context.Background(), r); err == nil {
		t.Fatalf("expected missing Authorization header to be rejected")
	}
}

func Test_PassthroughAuthenticatorRejectsNonBearerScheme(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/ecdsa/keygen/first", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	var authn PassthroughAuthenticator
	if _, err := authn.Authenticate(context.Background(), r); err == nil {
		t.Fatalf("expected a non-bearer scheme to be rejected")
	}
}

type stubVerifier struct {
	subject string
	err     error
}

func (s stubVerifier) Verify(ctx context.Context, token string) (string, error) {
	return s.subject, s.err
}

func Test_OIDCAuthenticatorUsesVerifiedSubject(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/ecdsa/keygen/first", nil)
	r.Header.Set("Authorization", "Bearer some.jwt.token")

	authn := NewOIDCAuthenticator(stubVerifier{subject: "user-123"})

	userID, err := authn.Authenticate(context.Background(), r)
	if err != nil {
		t.Fatalf("Failed to authenticate : %s", err)
	}
	if userID != "user-123" {
		t.Fatalf("user id mismatch : got %q, want %q", userID, "user-123")
	}
}

func Test_OIDCAuthenticatorRejectsVerifierError(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/ecdsa/keygen/first", nil)
	r.Header.Set("Authorization", "Bearer some.jwt.token")

	authn := NewOIDCAuthenticator(stubVerifier{err: errors.New("signature invalid")})

	if _, err := authn.Authenticate(context.Background(), r); err == nil {
		t.Fatalf("expected a failed verification to be rejected")
	}
}

func Test_OIDCAuthenticatorRejectsEmptySubject(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/ecdsa/keygen/first", nil)
	r.Header.Set("Authorization", "Bearer some.jwt.token")

	authn := NewOIDCAuthenticator(stubVerifier{subject: ""})

	if _, err := authn.Authenticate(context.Background(), r); err == nil {
		t.Fatalf("expected an empty subject to be rejected")
	}
}
