// Package auth provides the authorization gate for the settlement transition.
package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"saldo/internal/core"
)

// Gate validates a caller-supplied passkey against a configured secret.
type Gate interface {
	// Verify returns nil when the passkey matches and core.ErrInvalidPasskey
	// otherwise. Implementations must not leak timing information.
	Verify(passkey string) error
}

// PasskeyGate compares against a single configured secret. When the secret is
// a bcrypt hash ($2a$, $2b$ or $2y$ prefix) the passkey is checked against
// the hash; otherwise a constant-time byte comparison is used.
type PasskeyGate struct {
	secret   string
	isBcrypt bool
}

func NewPasskeyGate(secret string) *PasskeyGate {
	return &PasskeyGate{
		secret:   secret,
		isBcrypt: looksLikeBcrypt(secret),
	}
}

func (g *PasskeyGate) Verify(passkey string) error {
	if g.secret == "" {
		// No secret configured means the gate is closed, never open.
		return core.ErrInvalidPasskey
	}
	if g.isBcrypt {
		if err := bcrypt.CompareHashAndPassword([]byte(g.secret), []byte(passkey)); err != nil {
			return core.ErrInvalidPasskey
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(g.secret), []byte(passkey)) != 1 {
		return core.ErrInvalidPasskey
	}
	return nil
}

func looksLikeBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
