// Package credential hashes and verifies passwords and PINs.
package credential

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/kidfeed/internal/model"
)

// Verifier checks a secret against a stored hash
type Verifier interface {
	Verify(secret, stored string) bool
}

// Hasher produces stored hashes for secrets
type Hasher interface {
	Hash(secret string) (string, error)
}

// HashVerifier does both
type HashVerifier interface {
	Hasher
	Verifier
}

// Bcrypt hashes with bcrypt. Comparison is constant time.
type Bcrypt struct {
	Cost int
}

var _ HashVerifier = Bcrypt{}

// NewBcrypt returns a Bcrypt hasher at the given cost, or bcrypt.DefaultCost when zero
func NewBcrypt(cost int) Bcrypt {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return Bcrypt{Cost: cost}
}

func (b Bcrypt) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), b.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b Bcrypt) Verify(secret, stored string) bool {
	if stored == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret))
	return err == nil
}

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// ErrPinFormat is returned for a PIN that is not exactly four digits
var ErrPinFormat = &model.ValidationError{Field: "pin", Message: "PIN must be 4 digits"}

// ValidatePin checks the PIN format
func ValidatePin(pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrPinFormat
	}
	return nil
}
