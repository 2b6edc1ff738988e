package jwt

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Role identifiers carried in the role_id claim.
const (
	RoleRecruiter = 1
	RoleApplicant = 2
)

// Claims defines the bearer token payload.
type Claims struct {
	Username string `json:"username"`
	RoleID   int    `json:"role_id"`
	jwtlib.RegisteredClaims
}

// GenerateToken issues a signed JWT with provided secret and ttl.
func GenerateToken(username string, roleID int, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RoleID:   roleID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "recruitment",
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse validates and extracts claims from token.
func Parse(token string, secret string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	return claims, nil
}

// PeekExpiry reads the exp claim without verifying the signature. Clients
// hold no signing key, so the result is informational only. ok is false for
// opaque tokens and tokens without exp.
func PeekExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	parsed, _, err := jwtlib.NewParser().ParseUnverified(token, &jwtlib.RegisteredClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
