package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"ledgerline-backend/internal/models"
)

var ErrNotFound = errors.New("session not found")

const (
	TokenPrefix = "ll_sess_"
	tokenLength = 32

	// CookieName is the session cookie issued on login.
	CookieName = "ledgerline_session"

	// TTL bounds both the cookie max-age and the server-side record.
	TTL = 24 * time.Hour
)

// Store holds the server-side session state keyed by opaque token. The
// snapshot stored at Create is returned verbatim by Get until the session is
// destroyed or its TTL elapses; no implementation refreshes it from the
// database.
type Store interface {
	Create(ctx context.Context, sess *models.Session) (string, error)
	Get(ctx context.Context, token string) (*models.Session, error)
	Destroy(ctx context.Context, token string) error
}

func GenerateToken() (string, error) {
	bytes := make([]byte, tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return TokenPrefix + hex.EncodeToString(bytes), nil
}
