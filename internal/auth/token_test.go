package auth

import (
	"testing"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("u-42", "manager", "secret")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ParseAccessToken(token, "secret")
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "u-42" {
		t.Fatalf("subject = %q, want u-42", claims.Subject)
	}
	if claims.Role != "manager" {
		t.Fatalf("role = %q, want manager", claims.Role)
	}
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	token, err := GenerateAccessToken("u-42", "manager", "secret")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ParseAccessToken(token, "other-secret"); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestParseAccessToken_Garbage(t *testing.T) {
	if _, err := ParseAccessToken("not.a.jwt", "secret"); err == nil {
		t.Fatal("expected parse to fail")
	}
}
