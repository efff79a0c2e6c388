package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ExpectedSignature returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID)),
// the signature the gateway hands to the client after a successful checkout.
func ExpectedSignature(orderID, paymentID, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature reports whether signature matches the expected checkout signature.
// The comparison is exact (case-sensitive hex) and constant-time.
func VerifySignature(orderID, paymentID, signature, secret string) bool {
	expected := ExpectedSignature(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
