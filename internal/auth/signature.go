package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// VerifyLineSignature checks the X-Line-Signature header: base64(HMAC-SHA256(secret, body)).
// The comparison is constant time. An empty header or secret never verifies.
func VerifyLineSignature(body []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}

// SignLine computes the signature LINE would send for body. Used by tests and local tooling.
func SignLine(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyOmiseSignature checks Omise-Signature against hex(HMAC-SHA256(base64decode(secret), timestamp + "." + body)).
// The header may carry several comma separated signatures during secret rotation; any match verifies.
func VerifyOmiseSignature(body []byte, signatureHeader, timestamp, secret string) bool {
	if signatureHeader == "" || timestamp == "" || secret == "" {
		return false
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, sig := range strings.Split(signatureHeader, ",") {
		if hmac.Equal([]byte(expected), []byte(strings.TrimSpace(sig))) {
			return true
		}
	}
	return false
}
