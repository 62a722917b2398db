package auth

import (
	"testing"
	"time"
)

func TestSignedTokenRoundTrip(t *testing.T) {
	value, err := NewSignedToken("secret", "issuer", time.Minute, "@carl:example.org", "token-1")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseSignedToken("secret", value)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if claims.UserID != "@carl:example.org" || claims.ID != "token-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSignedTokenWrongSecret(t *testing.T) {
	value, err := NewSignedToken("secret", "issuer", time.Minute, "@carl:example.org", "token-1")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseSignedToken("other-secret", value); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestSignedTokenExpiry(t *testing.T) {
	value, err := NewSignedToken("secret", "issuer", -time.Minute, "@carl:example.org", "token-1")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseSignedToken("secret", value); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestSignedTokenNoExpiry(t *testing.T) {
	value, err := NewSignedToken("secret", "issuer", 0, "@carl:example.org", "token-1")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	claims, err := ParseSignedToken("secret", value)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Fatal("expected no expiry claim")
	}
}
