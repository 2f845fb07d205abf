package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const codeDigits = 6

var codeUpperBound = big.NewInt(1_000_000)

// Code is a one-time password reset code bound to an email address.
type Code struct {
	ID        string
	Email     string
	Code      string
	Verified  bool
	CreatedAt time.Time // UTC
	ExpiresAt time.Time // UTC
}

func (c Code) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// generateCode returns a uniformly random 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeUpperBound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
