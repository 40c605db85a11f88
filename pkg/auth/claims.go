package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the identity carried by a bookinga bearer token.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}
