package account

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// PasswordMaxBytes is the longest input bcrypt hashes without truncating.
const PasswordMaxBytes = 72

var (
	ErrEmptyPassword   = errors.New("password is empty")
	ErrPasswordTooLong = errors.Errorf("password must not exceed %d bytes", PasswordMaxBytes)
)

// Hasher hashes and verifies passwords with bcrypt at a fixed cost.
type Hasher struct {
	cost int
}

func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

func (h Hasher) Hash(plain string) ([]byte, error) {
	if plain == "" {
		return nil, ErrEmptyPassword
	}
	if len(plain) > PasswordMaxBytes {
		return nil, ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hashing password")
	}
	return hash, nil
}

// Verify compares in constant time through bcrypt.
// Inputs bcrypt would truncate never match.
func (h Hasher) Verify(plain string, hash []byte) bool {
	if len(plain) > PasswordMaxBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(plain)) == nil
}
