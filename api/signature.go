package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
)

// Signature computes the digest Trello sends in the x-trello-webhook
// header: base64(HMAC-SHA1(body || callbackURL)) keyed with the API
// secret.
func Signature(body []byte, callbackURL, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	mac.Write([]byte(callbackURL))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature checks a header value against the computed digest.
func ValidSignature(body []byte, callbackURL, secret, header string) bool {
	if header == "" {
		return false
	}
	expected := Signature(body, callbackURL, secret)
	return hmac.Equal([]byte(expected), []byte(header))
}
