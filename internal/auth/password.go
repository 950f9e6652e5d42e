package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("incorrect username or password")

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword returns ErrBadCredentials on mismatch.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}

// dummyHash is compared against when the user does not exist, so unknown and
// known usernames cost the same bcrypt work.
var dummyHash = sync.OnceValue(func() []byte {
	b, err := bcrypt.GenerateFromPassword([]byte("ovpnadmin-no-such-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return b
})

// RejectUnknownUser burns one bcrypt comparison and always returns ErrBadCredentials.
func RejectUnknownUser(password string) error {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
	return ErrBadCredentials
}
