// Package auth resolves registry credentials and derives the scoped
// authentication directives npm-protocol clients key credentials by.
package auth

import (
	"errors"
	"fmt"
)

// TokenUsername is the identity used when a registry token is presented
// through basic auth. Azure DevOps feeds accept any personal access token
// under this name.
const TokenUsername = "VssToken"

// DefaultEmail is written when an endpoint supplies no email.
const DefaultEmail = "email"

// ErrMissingCredentials is returned when neither a token nor a complete
// username/password pair was supplied.
var ErrMissingCredentials = errors.New("missing credentials: token or username and password required")

// Input is the raw, user supplied authentication for one registry.
type Input struct {
	URL      string
	Token    string
	Username string
	Password string
	Email    string
}

// Credential is a resolved basic-auth identity. It never carries a token.
type Credential struct {
	Username   string
	Password   string
	Email      string
	AlwaysAuth bool
}

// Endpoint is one registry together with its resolved credential.
type Endpoint struct {
	URL        string
	Credential Credential
	// FromToken records that the credential was translated from a token.
	FromToken bool
}

// Resolve turns in into a Credential. A token always wins over a
// username/password pair and is mapped onto TokenUsername.
func Resolve(in Input) (Credential, bool, error) {
	if in.Token != "" {
		return Credential{
			Username:   TokenUsername,
			Password:   in.Token,
			Email:      in.Email,
			AlwaysAuth: true,
		}, true, nil
	}
	if in.Username == "" || in.Password == "" {
		return Credential{}, false, ErrMissingCredentials
	}
	return Credential{
		Username:   in.Username,
		Password:   in.Password,
		Email:      in.Email,
		AlwaysAuth: true,
	}, false, nil
}

// NewEndpoint resolves in and binds the result to its URL.
func NewEndpoint(in Input) (Endpoint, error) {
	if in.URL == "" {
		return Endpoint{}, errors.New("registry url is required")
	}
	cred, fromToken, err := Resolve(in)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%s: %w", in.URL, err)
	}
	return Endpoint{URL: in.URL, Credential: cred, FromToken: fromToken}, nil
}
