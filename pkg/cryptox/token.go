package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// TokenSize256 is 32 random bytes, 43 chars once base64url encoded.
const TokenSize256 = 32

// GenerateToken returns size random bytes, base64url encoded without
// padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken is the SHA-256 of token, base64url encoded. Single-use
// codes are stored and looked up by fingerprint only.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewInviteCode returns a fresh invitation code and the fingerprint to
// persist for it.
func NewInviteCode() (code, fingerprint string, err error) {
	code, err = GenerateToken(TokenSize256)
	if err != nil {
		return "", "", err
	}
	return code, FingerprintToken(code), nil
}
