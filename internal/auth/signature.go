package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature checks the X-Hub-Signature-256 header against the raw,
// unparsed request body. The header must be "sha256=<hex>"; any other
// algorithm prefix is rejected. It never returns an error: a missing or
// malformed header, or an unconfigured secret, is simply a failed
// verification and the caller rejects with 403.
//
// Verification must run on the raw bytes before JSON parsing, since
// re-serialization is not guaranteed to reproduce the signed payload.
func VerifySignature(rawBody []byte, header, appSecret string) bool {
	if header == "" || appSecret == "" {
		return false
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	return hmac.Equal(provided, expected)
}
