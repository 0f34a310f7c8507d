package models

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const verificationTokenBytes = 32

// NewVerificationToken returns a random single-use token and the digest to
// persist. Only the digest is ever stored.
func NewVerificationToken() (token string, digest string, err error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate verification token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, DigestToken(token), nil
}

// DigestToken hashes a presented token for lookup.
func DigestToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
