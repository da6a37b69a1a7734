package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// dummyHashes holds one placeholder hash per bcrypt cost. Failure paths that
// never reach a stored hash compare against it so they cost the same as a
// wrong password.
var dummyHashes sync.Map

type dummyHash struct {
	once sync.Once
	hash []byte
}

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), clampCost(cost))
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	if hashed == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// BurnCompare spends a bcrypt comparison at the given cost without a real hash.
func BurnCompare(plain string, cost int) {
	cost = clampCost(cost)
	v, _ := dummyHashes.LoadOrStore(cost, &dummyHash{})
	d := v.(*dummyHash)
	d.once.Do(func() {
		d.hash, _ = bcrypt.GenerateFromPassword([]byte("burn-compare-placeholder"), cost)
	})
	_ = bcrypt.CompareHashAndPassword(d.hash, []byte(plain))
}

func clampCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}
