package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrSessionNotFound is returned when no session matches the given token.
var ErrSessionNotFound = errors.New("session not found")

type (
	// A Session is a pending (unverified) or active (verified) sign-in.
	Session struct {
		Token        string     `json:"token"`
		AccountEmail string     `json:"account_email"`
		CreatedAt    time.Time  `json:"created_at"`
		VerifiedAt   *time.Time `json:"verified_at,omitempty"`
		LastSeenAt   time.Time  `json:"last_seen_at"`
	}

	// A Table holds the unverified and verified partitions of sessions, keyed by token.
	Table interface {
		// PutUnverified inserts a pending session.
		PutUnverified(ctx context.Context, s *Session) error
		// TakeUnverified removes and returns the pending session of the token.
		// Only one caller can take a given token.
		TakeUnverified(ctx context.Context, token string) (*Session, error)
		// PutVerified inserts an active session.
		PutVerified(ctx context.Context, s *Session) error
		// GetVerified returns the active session of the token.
		GetVerified(ctx context.Context, token string) (*Session, error)
		// TouchVerified updates the last seen date of an active session.
		TouchVerified(ctx context.Context, token string, at time.Time) error
		// DeleteVerified removes the active session of the token.
		DeleteVerified(ctx context.Context, token string) error
		// ReapUnverified removes the pending sessions created before the given date.
		ReapUnverified(ctx context.Context, before time.Time) (int, error)
		// Close releases the table resources.
		Close() error
	}
)

// IsVerified returns true if the session has been verified.
func (s *Session) IsVerified() bool {
	return s.VerifiedAt != nil
}

func (s *Session) clone() *Session {
	c := *s
	if s.VerifiedAt != nil {
		t := *s.VerifiedAt
		c.VerifiedAt = &t
	}
	return &c
}
