package broker

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// SecretVerifier checks the shared secret presented by a caller.
type SecretVerifier interface {
	Verify(secret string) bool
}

type plainSecret []byte

func (p plainSecret) Verify(secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare(p, []byte(secret)) == 1
}

type bcryptSecret []byte

func (h bcryptSecret) Verify(secret string) bool {
	if secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(h, []byte(secret)) == nil
}

// NewSecretVerifier prefers the bcrypt hash when both forms are configured.
func NewSecretVerifier(secret, bcryptHash string) (SecretVerifier, error) {
	if bcryptHash != "" {
		if _, err := bcrypt.Cost([]byte(bcryptHash)); err != nil {
			return nil, err
		}
		return bcryptSecret(bcryptHash), nil
	}
	if secret == "" {
		return nil, errors.New("broker secret is not configured")
	}
	return plainSecret(secret), nil
}
