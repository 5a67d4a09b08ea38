package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, key *ecdsa.PrivateKey, issuer, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("Failed to sign token : %s", err)
	}
	return signed
}

func Test_JWTVerifierAcceptsValidToken(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key : %s", err)
	}

	token := signedToken(t, key, "wallet-service", "user-42")

	verifier := &JWTVerifier{PublicKey: &key.PublicKey, Issuer: "wallet-service"}
	subject, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Failed to verify token : %s", err)
	}
	if subject != "user-42" {
		t.Fatalf("subject mismatch : got %q, want %q", subject, "user-42")
	}
}

func Test_JWTVerifierRejectsWrongIssuer(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key : %s", err)
	}

	token := signedToken(t, key, "someone-else", "user-42")

	verifier := &JWTVerifier{PublicKey: &key.PublicKey, Issuer: "wallet-service"}
	if _, err := verifier.Verify(context.Background(), token); err == nil {
		t.Fatalf("expected a token from the wrong issuer to be rejected")
	}
}

func Test_JWTVerifierRejectsWrongKey(t *testing.T) {
	signingKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate signing key : %s", err)
	}
	otherKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate other key : %s", err)
	}

	token := signedToken(t, signingKey, "wallet-service", "user-42")

	verifier := &JWTVerifier{PublicKey: &otherKey.PublicKey, Issuer: "wallet-service"}
	if _, err := verifier.Verify(context.Background(), token); err == nil {
		t.Fatalf("expected a token signed by a different key to be rejected")
	}
}
