// Package auth provides the credential primitives: bcrypt password
// hashing and JWT session tokens.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, and that slowness is the security property:
// it makes offline brute-force expensive. It also generates and embeds a
// random salt in its output, so identical passwords hash differently and
// no separate salt column is needed. Never store passwords in plain text
// or with a fast hash like SHA-256.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on
// current server hardware — negligible per login, brutal per guess.
const defaultCost = 12

// PasswordService hashes and verifies passwords.
//
// It's a struct rather than free functions so the cost can be lowered in
// tests: cost 4 (the bcrypt minimum) makes each hash ~1000x faster without
// changing any of the logic under test.
type PasswordService struct {
	cost int
}

// NewPasswordService returns a PasswordService at the production cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest returns a PasswordService with a custom (low)
// cost. Test use only.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash bcrypt-hashes plaintext. The returned string is self-contained —
// version, cost, salt, and digest — and is stored as-is.
//
// bcrypt silently truncates inputs past 72 bytes; we reject them instead
// so callers aren't surprised.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored hash. Returns nil on
// match. The comparison inside bcrypt is constant-time, so response timing
// leaks nothing about how close a guess was.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
