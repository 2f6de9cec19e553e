// Package auth validates the externally-issued tokens presented during the
// connection handshake. Credential issuance itself lives outside the engine.
package auth

import (
	"chatter/errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator checks handshake tokens against the shared signing secret.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) Authenticator {
	return Authenticator{secret: []byte(secret)}
}

// GenerateToken creates a signed JWT for a specific user. The engine itself
// only validates; this exists for the issuing layer and for tests.
func (a Authenticator) GenerateToken(userID, username string, lifetime time.Duration) (string, error) {
	claims := &CustomClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chatter",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and validates the signature and expiration of a JWT
// string. Any failure maps to ErrInvalidToken; the transport closes the
// connection without detail.
func (a Authenticator) ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, errors.ErrInvalidToken
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}
	return nil, errors.ErrInvalidToken
}
