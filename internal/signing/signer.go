package signing

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// Sign computes the HMAC-SHA512 of the canonical string keyed by the tenant
// client secret.
func Sign(canonical, secret string) []byte {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(canonical))
	return mac.Sum(nil)
}

// SignHex returns the hex digest placed on the wire in the signature header.
func SignHex(canonical, secret string) string {
	return hex.EncodeToString(Sign(canonical, secret))
}
