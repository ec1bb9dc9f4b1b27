package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash computes a keyed HMAC-SHA256 digest over the canonical JSON encoding
// of payload, hex encoded. encoding/json writes map keys in sorted order, so
// equal payloads produce equal digests regardless of construction order.
func Hash(secret string, payload map[string]string) string {
	body, _ := json.Marshal(payload) // marshaling map[string]string cannot fail
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHash reports whether provided matches the digest expected for
// payload, using a constant-time comparison.
func VerifyHash(secret string, payload map[string]string, provided string) bool {
	providedRaw, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	body, _ := json.Marshal(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(providedRaw, mac.Sum(nil))
}
