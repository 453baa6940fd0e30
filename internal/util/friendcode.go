package util

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

const FriendCodeLength = 8

// GenerateFriendCode returns an upper-case code drawn from A-Z and 2-7.
func GenerateFriendCode() (string, error) {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	code := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)
	return code[:FriendCodeLength], nil
}

// NormalizeFriendCode makes lookups case-insensitive.
func NormalizeFriendCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
