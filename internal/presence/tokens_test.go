package presence

import (
	"testing"
	"time"
)

func TestRoomTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("test-signing-secret")})

	token, err := issuer.IssueRoomToken("room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	roomID, err := issuer.ValidateRoomToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if roomID != "room-1" {
		t.Fatalf("expected room-1, got %s", roomID)
	}
}

func TestTokenAudiencesAreNotInterchangeable(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("test-signing-secret")})

	roomToken, err := issuer.IssueRoomToken("room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sessionToken, err := issuer.IssueSessionToken("ps-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := issuer.ValidateSessionToken(roomToken); err == nil {
		t.Fatal("expected room token to fail session validation")
	}
	if _, err := issuer.ValidateRoomToken(sessionToken); err == nil {
		t.Fatal("expected session token to fail room validation")
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("secret-a")})
	other := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("secret-b")})

	token, err := issuer.IssueRoomToken("room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := other.ValidateRoomToken(token); err == nil {
		t.Fatal("expected validation to fail under a different secret")
	}
}

func TestTokenExpires(t *testing.T) {
	clock := &movableClock{now: time.UnixMilli(1700000000000).UTC()}
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		TokenTTL:      time.Minute,
		Clock:         clock.Now,
	})

	token, err := issuer.IssueRoomToken("room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if _, err := issuer.ValidateRoomToken(token); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestIssueRequiresSecretAndSubject(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{})
	if _, err := issuer.IssueRoomToken("room-1"); err == nil {
		t.Fatal("expected error without signing secret")
	}

	withSecret := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("s")})
	if _, err := withSecret.IssueRoomToken(""); err == nil {
		t.Fatal("expected error without subject")
	}
}
