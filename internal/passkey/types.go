package passkey

import (
	"errors"
	"fmt"
)

// ErrCancelled marks a ceremony the user aborted (or that was superseded by
// a competing ceremony). Never surfaced to the user as an error.
var ErrCancelled = errors.New("passkey: ceremony cancelled by user")

// ErrUnsupported marks a platform without a usable WebAuthn ceremony API.
// Surfaced as a disabled affordance, not an error.
var ErrUnsupported = errors.New("passkey: platform does not support passkeys")

// CeremonyError is any other platform ceremony failure, carrying the
// DOMException name reported by the webview when there is one
type CeremonyError struct {
	Name    string
	Message string
}

func (e *CeremonyError) Error() string {
	if e.Name != "" && e.Message != "" {
		return fmt.Sprintf("passkey ceremony failed: %s: %s", e.Name, e.Message)
	}
	if e.Message != "" {
		return "passkey ceremony failed: " + e.Message
	}
	return "passkey ceremony failed"
}

// Capabilities reports what the platform ceremony layer can do. Best-effort
// UI affordance data; the server stays the authority on whether a flow works.
type Capabilities struct {
	Available             bool `json:"available"`
	Autofill              bool `json:"autofill"`
	PlatformAuthenticator bool `json:"platformAuthenticator"`
}
