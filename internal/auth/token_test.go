package auth

import (
	"testing"
	"time"
)

func TestServiceTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)

	token, err := tm.GenerateServiceToken("wamid.123")
	if err != nil {
		t.Fatalf("GenerateServiceToken: %v", err)
	}

	claims, err := tm.ParseServiceToken(token)
	if err != nil {
		t.Fatalf("ParseServiceToken: %v", err)
	}
	if claims.WaMessageID != "wamid.123" {
		t.Errorf("wa_message_id = %q", claims.WaMessageID)
	}
}

func TestServiceTokenWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", time.Minute).GenerateServiceToken("wamid.1")
	if err != nil {
		t.Fatalf("GenerateServiceToken: %v", err)
	}
	if _, err := NewTokenManager("secret-b", time.Minute).ParseServiceToken(token); err == nil {
		t.Fatal("token signed with other secret should not parse")
	}
}

func TestServiceTokenExpired(t *testing.T) {
	tm := &TokenManager{secret: []byte("s"), ttl: -time.Minute}
	token, err := tm.GenerateServiceToken("wamid.1")
	if err != nil {
		t.Fatalf("GenerateServiceToken: %v", err)
	}
	if _, err := tm.ParseServiceToken(token); err == nil {
		t.Fatal("expired token should not parse")
	}
}

func TestServiceTokenGarbage(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	if _, err := tm.ParseServiceToken("not-a-jwt"); err == nil {
		t.Fatal("garbage token should not parse")
	}
}
