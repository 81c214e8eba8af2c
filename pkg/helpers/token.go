package helpers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// ResetTokenBytes is the entropy of a password reset token.
const ResetTokenBytes = 20

// GenResetToken returns a random hex token and the sha256 hex digest that is
// stored in its place.
func GenResetToken() (token, digest string, err error) {
	b := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, HashToken(token), nil
}

// HashToken is the sha256 hex digest of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Redis key helpers

// KeySession is the Redis key holding an account's current session artifact.
func KeySession(accountID string) string {
	return "user:session:" + accountID
}
