package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeAccess TokenType = "access"

// Claims are the only supported JWT claims shape for this service.
// Tokens identify the principal only. Organization roles are resolved server-side per request
// and are never trusted from the token.
type Claims struct {
	jwt.RegisteredClaims

	PrincipalID string    `json:"principal_id"`
	TokenType   TokenType `json:"token_type"`
}
