package utils

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// PasswordHasher binds a bcrypt cost and keeps a dummy hash of the same
// cost so that a login for an unknown email burns the same CPU time as a
// wrong password.
type PasswordHasher struct {
	cost int

	once  sync.Once
	dummy []byte
}

func NewPasswordHasher(cost int) *PasswordHasher {
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(plain string) (string, error) { return HashPassword(plain, h.cost) }

func (h *PasswordHasher) Verify(hash, plain string) bool { return VerifyPassword(hash, plain) }

// VerifyMissing runs a comparison that always fails.
func (h *PasswordHasher) VerifyMissing(plain string) {
	h.once.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
}
