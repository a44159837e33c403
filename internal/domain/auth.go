package domain

import "time"

// TokenIssuer issues tokens (e.g. JWT) for an authenticated admin.
type TokenIssuer interface {
	Issue(adminID, email string, roles []string, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns the authenticated admin ID.
type TokenVerifier interface {
	Verify(token string) (adminID string, err error)
}
