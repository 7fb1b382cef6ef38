// Package auth resolves requests into a client identity and tier, using
// either long-lived static API keys or short-lived time-based one-time
// codes (TOTP) bound to a browser-generated device ID.
//
// The TOTP scheme is deliberately not RFC 6238: codes are the first 16 hex
// characters of HMAC-SHA256(secret, "<browserID>:<windowIndex>") over
// 1-hour windows, carried as "totp_<browserID>_<code>".
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	totpPrefix = "totp_"
	codeLength = 16

	// totpWindow is the code validity window. Validation also accepts the
	// previous window so codes minted just before a boundary still pass.
	totpWindow = time.Hour
)

// NewSecret returns a fresh 256-bit shared secret, hex encoded.
func NewSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("auth: crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

// GenerateCode derives the one-time code for browserID and secret at the
// current hour window shifted by offset (0 = current, -1 = previous).
func GenerateCode(browserID, secret string, offset int) string {
	return generateCodeAt(browserID, secret, offset, time.Now())
}

func generateCodeAt(browserID, secret string, offset int, now time.Time) string {
	window := now.UnixMilli()/totpWindow.Milliseconds() + int64(offset)
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%d", browserID, window)
	return hex.EncodeToString(mac.Sum(nil))[:codeLength]
}

// ValidateCode reports whether code is valid for browserID and secret in
// the current or previous window. Comparison is constant time.
func ValidateCode(browserID, secret, code string) bool {
	return validateCodeAt(browserID, secret, code, time.Now())
}

func validateCodeAt(browserID, secret, code string, now time.Time) bool {
	for _, offset := range []int{0, -1} {
		if constantTimeEqual(generateCodeAt(browserID, secret, offset, now), code) {
			return true
		}
	}
	return false
}

// constantTimeEqual compares two strings without leaking the mismatch
// position. A length mismatch short-circuits to false; equal-length
// inputs are compared in full.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// FormatKey assembles the wire form "totp_<browserID>_<code>".
func FormatKey(browserID, code string) string {
	return totpPrefix + browserID + "_" + code
}

// IsTOTPKey reports whether candidate uses the TOTP key format.
func IsTOTPKey(candidate string) bool {
	return strings.HasPrefix(candidate, totpPrefix)
}

// ParseKey splits a TOTP key into browser ID and code. The code is the
// segment after the last underscore; the browser ID is everything between
// the prefix and that separator, so underscores inside the ID survive a
// round trip (canonical UUIDv4 IDs contain none).
func ParseKey(key string) (browserID, code string, err error) {
	if !strings.HasPrefix(key, totpPrefix) {
		return "", "", fmt.Errorf("auth: not a TOTP key")
	}
	rest := strings.TrimPrefix(key, totpPrefix)
	i := strings.LastIndex(rest, "_")
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("auth: malformed TOTP key")
	}
	return rest[:i], rest[i+1:], nil
}
