package usertoken

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier(Config{}); err == nil {
		t.Fatalf("expected missing secret to fail")
	}
}

func TestVerifySubjectRoundTrip(t *testing.T) {
	v, err := NewVerifier(Config{Secret: "test-secret", Issuer: "issuer-a", Audience: "aud-a"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	signed, err := v.Issue("user-a")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	sub, err := v.VerifySubject(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "user-a" {
		t.Fatalf("unexpected subject: %q", sub)
	}
}

func TestVerifySubjectRejectsWrongSecret(t *testing.T) {
	issuer, err := NewVerifier(Config{Secret: "secret-one"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	verifier, err := NewVerifier(Config{Secret: "secret-two"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	signed, err := issuer.Issue("user-a")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := verifier.VerifySubject(signed); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}
}

func TestVerifySubjectRejectsWrongAudience(t *testing.T) {
	issuer, err := NewVerifier(Config{Secret: "shared", Audience: "aud-a"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	verifier, err := NewVerifier(Config{Secret: "shared", Audience: "aud-b"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	signed, err := issuer.Issue("user-a")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := verifier.VerifySubject(signed); err == nil {
		t.Fatalf("expected audience mismatch to fail")
	}
}

func TestVerifySubjectRejectsExpiredToken(t *testing.T) {
	v, err := NewVerifier(Config{Secret: "shared", Leeway: time.Second})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-a",
		Issuer:    defaultIssuer,
		Audience:  jwt.ClaimStrings{defaultAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Minute)),
	})
	signed, err := token.SignedString([]byte("shared"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.VerifySubject(signed); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestVerifySubjectRejectsNoneAlgorithm(t *testing.T) {
	v, err := NewVerifier(Config{Secret: "shared"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:  "user-a",
		Issuer:   defaultIssuer,
		Audience: jwt.ClaimStrings{defaultAudience},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.VerifySubject(signed); err == nil {
		t.Fatalf("expected alg=none token to fail")
	}
}

func TestVerifySubjectRejectsEmptySubject(t *testing.T) {
	v, err := NewVerifier(Config{Secret: "shared"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    defaultIssuer,
		Audience:  jwt.ClaimStrings{defaultAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		IssuedAt:  jwt.NewNumericDate(now),
	})
	signed, err := token.SignedString([]byte("shared"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.VerifySubject(signed); err == nil {
		t.Fatalf("expected missing subject to fail")
	}
}
