package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor for production hashing.
const defaultCost = 12

// bcrypt ignores everything past 72 bytes, so longer passwords are rejected
// instead of silently truncated.
const maxPasswordBytes = 72

var (
	ErrPasswordTooLong = fmt.Errorf("auth: password must be %d bytes or fewer", maxPasswordBytes)
	ErrInvalidPassword = errors.New("auth: invalid password")
)

// PasswordService hashes and verifies passwords with bcrypt. The cost is a
// field so tests can use the minimum.
type PasswordService struct {
	cost int
}

func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest uses the given (low) cost. Never use it outside
// tests.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns a self-describing bcrypt hash ($2a$<cost>$<salt><hash>).
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil if plaintext matches hash and ErrInvalidPassword if it
// does not. An empty hash (a GitHub-only account) never matches.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		return ErrInvalidPassword
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
