package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature checks the webhook signature header against an HMAC-SHA256
// digest of the raw payload keyed by the app secret. The header carries a
// "sha256=" prefix followed by the hex digest.
func VerifySignature(payload []byte, secret, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	provided := strings.TrimPrefix(header, signaturePrefix)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(provided))
}

// VerifyChallenge implements the platform's subscription handshake: when the
// mode is "subscribe" and the token matches, the caller must echo the
// challenge back verbatim.
func VerifyChallenge(mode, token, challenge, expectedToken string) (string, bool) {
	if mode != "subscribe" {
		return "", false
	}
	if expectedToken == "" || token != expectedToken {
		return "", false
	}
	return challenge, true
}
