package repositories

import (
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBCryptCost = 12
	maxPasswordBytes  = 72
)

type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBCryptCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash salts and hashes plain. bcrypt ignores input past 72 bytes, so longer
// passwords are rejected instead of silently truncated.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", validationError("password is required")
	}
	if len(plain) > maxPasswordBytes {
		return "", validationError("password must be at most %d bytes", maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *PasswordHasher) Compare(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
