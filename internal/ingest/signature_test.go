package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func signFor(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAcceptsValidDigest(t *testing.T) {
	payload := []byte(`{"object":"page","entry":[]}`)
	header := signFor(t, payload, "app-secret")

	if !VerifySignature(payload, "app-secret", header) {
		t.Fatal("expected valid signature to pass")
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"object":"page","entry":[]}`)
	header := signFor(t, payload, "app-secret")

	tampered := []byte(`{"object":"page","entry":[{}]}`)
	if VerifySignature(tampered, "app-secret", header) {
		t.Fatal("expected tampered payload to fail")
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	header := signFor(t, payload, "other-secret")

	if VerifySignature(payload, "app-secret", header) {
		t.Fatal("expected wrong secret to fail")
	}
}

func TestVerifySignatureRequiresPrefix(t *testing.T) {
	payload := []byte(`{}`)
	mac := hmac.New(sha256.New, []byte("app-secret"))
	mac.Write(payload)
	bare := hex.EncodeToString(mac.Sum(nil))

	if VerifySignature(payload, "app-secret", bare) {
		t.Fatal("expected signature without sha256= prefix to fail")
	}
	if VerifySignature(payload, "app-secret", "") {
		t.Fatal("expected empty header to fail")
	}
	if VerifySignature(payload, "", signFor(t, payload, "")) {
		t.Fatal("expected empty secret to fail")
	}
}

func TestVerifyChallenge(t *testing.T) {
	challenge, ok := VerifyChallenge("subscribe", "verify-me", "12345", "verify-me")
	if !ok || challenge != "12345" {
		t.Fatalf("expected challenge echo, got %q ok=%v", challenge, ok)
	}

	if _, ok := VerifyChallenge("unsubscribe", "verify-me", "12345", "verify-me"); ok {
		t.Fatal("expected non-subscribe mode to fail")
	}
	if _, ok := VerifyChallenge("subscribe", "wrong", "12345", "verify-me"); ok {
		t.Fatal("expected token mismatch to fail")
	}
	if _, ok := VerifyChallenge("subscribe", "", "12345", ""); ok {
		t.Fatal("expected empty expected token to fail")
	}
}
