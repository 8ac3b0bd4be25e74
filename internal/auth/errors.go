package auth

import (
	"errors"

	"farmdb/internal/authapi"
)

// ErrUnauthenticated marks an action that requires a session when none exists
var ErrUnauthenticated = errors.New("auth: not authenticated")

// errSuperseded marks an operation whose result arrived after a logout (or a
// newer token exchange) already ended its session epoch. Absorbed internally;
// never user-visible.
var errSuperseded = errors.New("auth: operation superseded")

// visibleMessage converts an operation failure into the user-facing error
// string: server-reported detail when there is one, a generic transport
// message otherwise
func visibleMessage(err error) string {
	if apiErr, ok := authapi.AsAPIError(err); ok {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return "The server rejected the request"
	}
	return "Could not reach the server"
}
