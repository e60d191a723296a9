package auth

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shashiranjanraj/filemanager/config"
)

// Claims holds the typed JWT payload. Permissions are the ability names the
// file manager gate checks against.
type Claims struct {
	UserID      uint     `json:"user_id"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID identifies the caller in logs.
func (c *Claims) SubjectID() string {
	return strconv.FormatUint(uint64(c.UserID), 10)
}

// HasPermission reports whether the token grants perm.
func (c *Claims) HasPermission(perm string) bool {
	return slices.Contains(c.Permissions, perm)
}

// Issuer is stamped on and required of every token.
const Issuer = "filemanager"

// clockSkew tolerates small clock differences between issuer and server.
const clockSkew = 30 * time.Second

func secret() []byte {
	return []byte(config.JWTSecret())
}

// GenerateToken signs an HS256 token for userID that expires after ttl.
func GenerateToken(userID uint, permissions []string, ttl time.Duration) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:      userID,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString(secret())
}

var parser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithIssuer(Issuer),
	jwt.WithExpirationRequired(),
	jwt.WithLeeway(clockSkew),
)

// ValidateToken verifies signature, issuer and expiry.
func ValidateToken(raw string) (*Claims, error) {
	claims := new(Claims)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret(), nil
	}); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	return claims, nil
}
