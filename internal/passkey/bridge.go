package passkey

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Wails event contract with the webview, where navigator.credentials lives:
//   backend → frontend  "passkey:request"  {id, kind, conditional, options}
//   backend → frontend  "passkey:cancel"   {id}
//   frontend → backend  App.PasskeyBridgeResult(id, credentialJSON, errName, errMessage)
//   frontend → backend  App.PasskeyBridgeCapabilities(available, autofill, platform)

type bridgeResult struct {
	credential json.RawMessage
	errName    string
	errMessage string
}

// Bridge runs platform ceremonies by round-tripping options through the
// webview. One result per request id; cancellation tells the frontend to
// abort its AbortController.
type Bridge struct {
	ctx context.Context

	mu        sync.Mutex
	pending   map[string]chan bridgeResult
	caps      Capabilities
	capsKnown bool
}

// NewBridge creates the webview ceremony bridge
func NewBridge(ctx context.Context) *Bridge {
	return &Bridge{
		ctx:     ctx,
		pending: make(map[string]chan bridgeResult),
	}
}

// ReportCapabilities records the frontend's capability probe results.
// Called once per webview load, before any ceremony starts.
func (b *Bridge) ReportCapabilities(caps Capabilities) {
	b.mu.Lock()
	b.caps = caps
	b.capsKnown = true
	b.mu.Unlock()
	log.Printf("[PASSKEY] Capabilities reported: available=%v autofill=%v platform=%v",
		caps.Available, caps.Autofill, caps.PlatformAuthenticator)
}

// Complete resolves a pending ceremony. Unknown ids are ignored (the
// ceremony was cancelled or superseded).
func (b *Bridge) Complete(requestID string, credentialJSON string, errName, errMessage string) {
	b.mu.Lock()
	ch, ok := b.pending[requestID]
	if ok {
		delete(b.pending, requestID)
	}
	b.mu.Unlock()
	if !ok {
		log.Printf("[PASSKEY] Dropping result for unknown ceremony %s", requestID)
		return
	}

	result := bridgeResult{errName: errName, errMessage: errMessage}
	if errName == "" {
		result.credential = json.RawMessage(credentialJSON)
	}
	ch <- result
}

func (b *Bridge) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capsKnown && b.caps.Available
}

func (b *Bridge) AutofillAvailable(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capsKnown && b.caps.Autofill
}

func (b *Bridge) PlatformAuthenticatorAvailable(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capsKnown && b.caps.PlatformAuthenticator
}

func (b *Bridge) Create(ctx context.Context, options protocol.CredentialCreation) (json.RawMessage, error) {
	return b.ceremony(ctx, "create", options, false)
}

func (b *Bridge) Get(ctx context.Context, options protocol.CredentialAssertion, conditional bool) (json.RawMessage, error) {
	return b.ceremony(ctx, "get", options, conditional)
}

func (b *Bridge) ceremony(ctx context.Context, kind string, options interface{}, conditional bool) (json.RawMessage, error) {
	if !b.Available() {
		return nil, ErrUnsupported
	}

	id := uuid.NewString()
	ch := make(chan bridgeResult, 1)

	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()

	runtime.EventsEmit(b.ctx, "passkey:request", map[string]interface{}{
		"id":          id,
		"kind":        kind,
		"conditional": conditional,
		"options":     options,
	})
	log.Printf("[PASSKEY] Ceremony %s started (%s, conditional=%v)", id, kind, conditional)

	// No second timeout layer here: the ceremony's own timeout option is
	// the platform's to enforce
	select {
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		runtime.EventsEmit(b.ctx, "passkey:cancel", map[string]string{"id": id})
		log.Printf("[PASSKEY] Ceremony %s cancelled", id)
		return nil, ErrCancelled
	case result := <-ch:
		return classifyResult(result)
	}
}

// classifyResult maps webview DOMException names onto the outcome taxonomy
func classifyResult(result bridgeResult) (json.RawMessage, error) {
	switch result.errName {
	case "":
		return result.credential, nil
	case "NotAllowedError", "AbortError":
		// User dismissed the prompt, or a competing ceremony superseded it
		return nil, ErrCancelled
	case "NotSupportedError":
		return nil, ErrUnsupported
	default:
		return nil, &CeremonyError{Name: result.errName, Message: result.errMessage}
	}
}
