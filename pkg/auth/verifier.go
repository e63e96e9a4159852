package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates identity-provider tokens and extracts the Principal.
type TokenVerifier interface {
	Verify(token string) (*Principal, error)
}

// JWTVerifier verifies HS256-signed identity tokens issued by the identity
// provider using a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a verifier for tokens signed with the given secret.
// If issuer is non-empty, the token's iss claim must match.
func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer}
}

// identityClaims are the claims the identity provider puts in its tokens.
type identityClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates the token, returning the authenticated Principal.
func (v *JWTVerifier) Verify(tokenString string) (*Principal, error) {
	claims := &identityClaims{}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("invalid identity token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid identity token")
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("identity token missing subject")
	}

	return &Principal{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}, nil
}

// SignToken creates a signed identity token. Used by tests and local tooling
// to stand in for the hosted identity provider.
func SignToken(secret []byte, issuer string, principal *Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &identityClaims{
		Email: principal.Email,
		Name:  principal.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
