// Package identity resolves bearer tokens to opaque owner ids.
package identity

import "errors"

var ErrInvalidToken = errors.New("invalid token")

// Resolver turns a bearer token into an opaque owner identifier. Token
// issuance and verification live outside this service.
type Resolver interface {
	Resolve(token string) (string, error)
}

// Passthrough treats the token itself as the owner id. It exists for
// wiring and local runs; deployments inject a real resolver.
type Passthrough struct{}

func (Passthrough) Resolve(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
