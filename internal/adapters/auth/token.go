package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"birdcount/internal/domain"
)

// RoleAdmin is the role required on tokens accepted by the admin API.
const RoleAdmin = "admin"

// ErrMissingRole is returned by Verify when the token lacks the admin role.
var ErrMissingRole = errors.New("token does not carry the admin role")

type jwtClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

type jwtIssuer struct {
	secret []byte
	issuer string
}

// NewJWTIssuer returns a TokenIssuer that signs JWTs with HS256 using the given secret.
// The expiry passed to Issue is used for each token.
func NewJWTIssuer(secret, issuer string) domain.TokenIssuer {
	return &jwtIssuer{secret: []byte(secret), issuer: issuer}
}

func (i *jwtIssuer) Issue(adminID, email string, roles []string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   adminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		Email: email,
		Roles: roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

type jwtVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier returns a TokenVerifier for HS256 tokens carrying the admin role.
func NewJWTVerifier(secret, issuer string) domain.TokenVerifier {
	return &jwtVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates the token and returns its subject.
// Tokens must be unexpired, signed with HS256 and carry RoleAdmin.
func (v *jwtVerifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &jwtClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("invalid token: missing subject")
	}
	if !slices.Contains(claims.Roles, RoleAdmin) {
		return "", ErrMissingRole
	}
	return claims.Subject, nil
}
