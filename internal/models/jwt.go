package models

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT payload carried by every authenticated request.
// Subject holds the user's UUID as a string.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}
