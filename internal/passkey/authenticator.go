package passkey

import (
	"context"
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
)

// Authenticator is the platform ceremony boundary. The real implementation
// bridges to the webview where navigator.credentials runs (see Bridge); the
// Unsupported variant stands in when no ceremony API exists, so callers
// never probe for a missing module at call time.
type Authenticator interface {
	// Available reports whether the ceremony API exists at all
	Available() bool
	// AutofillAvailable reports whether conditional-UI (autofill) ceremonies work
	AutofillAvailable(ctx context.Context) bool
	// PlatformAuthenticatorAvailable reports whether an on-device
	// (biometric) authenticator is present
	PlatformAuthenticatorAvailable(ctx context.Context) bool

	// Create runs the registration ceremony and returns the serialized
	// PublicKeyCredential the authenticator produced
	Create(ctx context.Context, options protocol.CredentialCreation) (json.RawMessage, error)
	// Get runs the authentication ceremony; conditional selects the
	// autofill (discoverable credential) variant
	Get(ctx context.Context, options protocol.CredentialAssertion, conditional bool) (json.RawMessage, error)
}

// Unsupported is the Authenticator for platforms without a ceremony API
type Unsupported struct{}

func (Unsupported) Available() bool { return false }

func (Unsupported) AutofillAvailable(context.Context) bool { return false }

func (Unsupported) PlatformAuthenticatorAvailable(context.Context) bool { return false }

func (Unsupported) Create(context.Context, protocol.CredentialCreation) (json.RawMessage, error) {
	return nil, ErrUnsupported
}

func (Unsupported) Get(context.Context, protocol.CredentialAssertion, bool) (json.RawMessage, error) {
	return nil, ErrUnsupported
}
