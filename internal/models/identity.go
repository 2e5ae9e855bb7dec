package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims is the JWT payload for API callers. Tokens carry the
// account only; the caller's role is resolved from the registry on
// every request so role grants take effect without re-issuing tokens.
type IdentityClaims struct {
	Account Account `json:"account"`
	jwt.RegisteredClaims
}
