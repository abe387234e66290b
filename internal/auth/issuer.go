package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAdmin is the only role the dashboard knows.
const RoleAdmin = "admin"

// ErrInvalidPassword is returned by Login on a password mismatch.
var ErrInvalidPassword = errors.New("invalid admin password")

// AdminClaims are the JWT claims carried by dashboard tokens.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer checks the shared demo password and signs admin tokens.
type Issuer struct {
	password  []byte
	secret    []byte
	audience  string
	expiresIn time.Duration
	now       func() time.Time
}

// NewIssuer creates an Issuer. An empty audience leaves the claim unset.
func NewIssuer(password, secret, audience string, expiresIn time.Duration) *Issuer {
	return &Issuer{
		password:  []byte(password),
		secret:    []byte(secret),
		audience:  audience,
		expiresIn: expiresIn,
		now:       time.Now,
	}
}

// Login compares password with the configured one and returns a signed token.
func (i *Issuer) Login(password string) (string, time.Time, error) {
	if len(i.password) == 0 || subtle.ConstantTimeCompare([]byte(password), i.password) != 1 {
		return "", time.Time{}, ErrInvalidPassword
	}

	now := i.now()
	expiresAt := now.Add(i.expiresIn)
	claims := AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   RoleAdmin,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
