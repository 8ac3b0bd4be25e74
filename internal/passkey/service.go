package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"farmdb/internal/authapi"
)

// API is the slice of the auth server contract the orchestrator needs
type API interface {
	PasskeyLoginOptions(ctx context.Context, email string) (authapi.AuthenticationOptions, error)
	PasskeyLoginVerify(ctx context.Context, credential json.RawMessage) (authapi.TokenPair, error)
	PasskeyRegisterOptions(ctx context.Context, accessToken string) (authapi.RegistrationOptions, error)
	PasskeyRegisterVerify(ctx context.Context, accessToken string, credential json.RawMessage, friendlyName string) (authapi.PasskeyRecord, error)
}

// Service sequences the three-step passkey flows: fetch options, run the
// platform ceremony, submit the proof
type Service struct {
	api           API
	authenticator Authenticator
}

// NewService creates the passkey orchestrator
func NewService(api API, authenticator Authenticator) *Service {
	return &Service{api: api, authenticator: authenticator}
}

// Capabilities reports the platform ceremony affordances, never failing
func (s *Service) Capabilities(ctx context.Context) Capabilities {
	return Capabilities{
		Available:             s.authenticator.Available(),
		Autofill:              s.authenticator.AutofillAvailable(ctx),
		PlatformAuthenticator: s.authenticator.PlatformAuthenticatorAvailable(ctx),
	}
}

// Register adds a passkey to the authenticated account. ErrCancelled when
// the user aborts the ceremony; other ceremony and network failures
// propagate as-is.
func (s *Service) Register(ctx context.Context, accessToken, friendlyName string) (authapi.PasskeyRecord, error) {
	options, err := s.api.PasskeyRegisterOptions(ctx, accessToken)
	if err != nil {
		return authapi.PasskeyRecord{}, fmt.Errorf("fetch registration options: %w", err)
	}

	credential, err := s.authenticator.Create(ctx, RegistrationCeremonyOptions(options))
	if err != nil {
		return authapi.PasskeyRecord{}, err
	}

	record, err := s.api.PasskeyRegisterVerify(ctx, accessToken, credential, friendlyName)
	if err != nil {
		return authapi.PasskeyRecord{}, err
	}
	log.Printf("[PASSKEY] Registered passkey %s", record.ID)
	return record, nil
}

// Authenticate runs a passkey login. An empty email allows any discoverable
// credential. The server's _challenge_key is echoed back unmodified on
// verify; it binds the response to the exact challenge issued.
func (s *Service) Authenticate(ctx context.Context, email string) (authapi.TokenPair, error) {
	return s.authenticate(ctx, email, false)
}

func (s *Service) authenticate(ctx context.Context, email string, conditional bool) (authapi.TokenPair, error) {
	options, err := s.api.PasskeyLoginOptions(ctx, email)
	if err != nil {
		return authapi.TokenPair{}, fmt.Errorf("fetch authentication options: %w", err)
	}

	response, err := s.authenticator.Get(ctx, AuthenticationCeremonyOptions(options), conditional)
	if err != nil {
		return authapi.TokenPair{}, err
	}

	credential, err := WithChallengeKey(response, options.ChallengeKey)
	if err != nil {
		return authapi.TokenPair{}, err
	}
	return s.api.PasskeyLoginVerify(ctx, credential)
}

const (
	autofillPending int32 = iota
	autofillSettled
	autofillCancelled
)

// AutofillHandle cancels an in-flight discoverable (autofill) ceremony.
// Cancelling after completion is a no-op.
type AutofillHandle struct {
	cancel context.CancelFunc
	state  atomic.Int32
}

// Cancel aborts the ceremony; its callbacks will not fire
func (h *AutofillHandle) Cancel() {
	if h.state.CompareAndSwap(autofillPending, autofillCancelled) {
		h.cancel()
	}
}

// settle claims the right to invoke a callback; false once cancelled
func (h *AutofillHandle) settle() bool {
	return h.state.CompareAndSwap(autofillPending, autofillSettled)
}

// StartDiscoverableAuth starts an autofill-style login against any
// discoverable credential. Returns nil when the platform lacks conditional
// UI. Exactly one callback fires on completion; a cancellation (via the
// handle, or because another ceremony superseded this one) fires neither.
func (s *Service) StartDiscoverableAuth(onSuccess func(authapi.TokenPair), onFailure func(error)) *AutofillHandle {
	ctx, cancel := context.WithCancel(context.Background())
	if !s.authenticator.AutofillAvailable(ctx) {
		cancel()
		return nil
	}

	handle := &AutofillHandle{cancel: cancel}
	go func() {
		defer cancel()
		pair, err := s.authenticate(ctx, "", true)
		switch {
		case err == nil:
			if handle.settle() {
				onSuccess(pair)
			}
		case isCancelled(err) || ctx.Err() != nil:
			// Silent: cancellation is not a failure
			handle.settle()
			log.Println("[PASSKEY] Discoverable auth cancelled")
		default:
			if handle.settle() {
				onFailure(err)
			}
		}
	}()
	return handle
}

func isCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
