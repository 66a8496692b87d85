package auth

import "leadgen-sync/internal/entity"

type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// SessionEvent is one auth state transition. User is nil on sign-out.
type SessionEvent struct {
	Event Event        `json:"event"`
	User  *entity.User `json:"user,omitempty"`
}
