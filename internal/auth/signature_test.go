package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"entry":[{"changes":[]}]}`)
	secret := "app-secret"

	cases := []struct {
		name   string
		body   []byte
		header string
		secret string
		want   bool
	}{
		{"valid", body, sign(body, secret), secret, true},
		{"wrong secret", body, sign(body, "other"), secret, false},
		{"tampered body", []byte(`{"entry":[]}`), sign(body, secret), secret, false},
		{"missing header", body, "", secret, false},
		{"unconfigured secret", body, sign(body, secret), "", false},
		{"wrong algorithm", body, "sha1=deadbeef", secret, false},
		{"no prefix", body, hex.EncodeToString([]byte("raw")), secret, false},
		{"malformed hex", body, "sha256=not-hex!", secret, false},
		{"empty body signed", []byte{}, sign([]byte{}, secret), secret, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := VerifySignature(tc.body, tc.header, tc.secret); got != tc.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVerifySignatureRawBytesMatter(t *testing.T) {
	// Semantically equal JSON with different whitespace must not verify
	// against the original signature.
	original := []byte(`{"a": 1}`)
	reserialized := []byte(`{"a":1}`)
	header := sign(original, "s")

	if !VerifySignature(original, header, "s") {
		t.Fatal("original body should verify")
	}
	if VerifySignature(reserialized, header, "s") {
		t.Fatal("re-serialized body must not verify")
	}
}
