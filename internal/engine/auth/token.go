package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"clientpilot/internal/domain"
)

const issuer = "clientpilot"

// Claims is the JWT body. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

func (t Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t Tokens) Issue(u domain.User) (string, time.Time, error) {
	if strings.TrimSpace(t.Secret) == "" {
		return "", time.Time{}, errors.New("auth: jwt secret not configured")
	}
	ttl := t.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := t.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Username: u.Username,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse validates signature, algorithm and expiry and returns the claims.
func (t Tokens) Parse(token string) (Claims, error) {
	if strings.TrimSpace(t.Secret) == "" {
		return Claims{}, errors.New("auth: jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(t.Secret), nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !parsed.Valid {
		return Claims{}, errors.New("auth: invalid token")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("auth: subject claim required")
	}
	return *claims, nil
}
