package console

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	// ErrUnauthorized is returned by commands that require a login.
	ErrUnauthorized = errors.New("not logged in: run `login <email>` first")
	// ErrInvalidCredentials is returned when a login is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authorizer gates access to the console.
type Authorizer interface {
	Authorize(identity, passphrase string) error
}

// PassphraseAuthorizer accepts any identity with a non-empty passphrase. When
// Passphrase is set the supplied passphrase must equal it.
type PassphraseAuthorizer struct {
	Passphrase string
}

// Authorize implements Authorizer.
func (a PassphraseAuthorizer) Authorize(identity, passphrase string) error {
	if strings.TrimSpace(identity) == "" || passphrase == "" {
		return ErrInvalidCredentials
	}
	if a.Passphrase == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(a.Passphrase), []byte(passphrase)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(identity, passphrase string) error

// Authorize implements Authorizer.
func (f AuthorizerFunc) Authorize(identity, passphrase string) error {
	return f(identity, passphrase)
}
