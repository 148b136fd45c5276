package realtime

import (
	"errors"

	"cinecircle/internal/shared"

	"golang.org/x/time/rate"
)

var (
	ErrIdentityMismatch = errors.New("payload identity does not match the session")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

// Session is the per-connection state the router keeps. It is owned by the
// connection's read loop, so frames of one session are handled in order.
type Session struct {
	conn       Conn
	claims     shared.AuthClaims
	limiter    *rate.Limiter
	registered bool
}

// UserID is the authenticated identity every payload is checked against.
func (s *Session) UserID() string {
	return s.claims.UserID
}

// Registered reports whether the session has sent addUser.
func (s *Session) Registered() bool {
	return s.registered
}
