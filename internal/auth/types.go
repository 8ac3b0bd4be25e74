package auth

import "farmdb/internal/authapi"

// Phase is the controller's lifecycle state
type Phase string

const (
	PhaseUninitialized   Phase = "uninitialized"
	PhaseRestoring       Phase = "restoring"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticated   Phase = "authenticated"
)

// Session is the canonical in-memory session. Invariant: IsAuthenticated is
// true iff User and AccessToken are both present.
type Session struct {
	User            *authapi.User
	AccessToken     string
	RefreshToken    string
	IsLoading       bool
	IsAuthenticated bool
}

// State is the session snapshot emitted to the frontend. Tokens never leave
// the Go side.
type State struct {
	Phase           Phase         `json:"phase"`
	User            *authapi.User `json:"user,omitempty"`
	IsLoading       bool          `json:"isLoading"`
	IsAuthenticated bool          `json:"isAuthenticated"`
	Error           string        `json:"error,omitempty"`
}
