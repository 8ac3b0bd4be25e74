package auth

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"farmdb/internal/authapi"
	"farmdb/internal/config"
	"farmdb/internal/passkey"
	"farmdb/internal/vault"
)

// API is the slice of the auth server contract the controller consumes
type API interface {
	Register(ctx context.Context, email, password, displayName string) (authapi.TokenPair, error)
	LoginPassword(ctx context.Context, email, password string) (authapi.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (authapi.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, accessToken string) (authapi.User, error)
	ListPasskeys(ctx context.Context, accessToken string) ([]authapi.PasskeyRecord, error)
	DeletePasskey(ctx context.Context, accessToken, id string) error
}

// Passkeys is the orchestrator surface the controller delegates to
type Passkeys interface {
	Authenticate(ctx context.Context, email string) (authapi.TokenPair, error)
	Register(ctx context.Context, accessToken, friendlyName string) (authapi.PasskeyRecord, error)
	StartDiscoverableAuth(onSuccess func(authapi.TokenPair), onFailure func(error)) *passkey.AutofillHandle
}

// Service owns the session lifecycle: restore at startup, login and
// registration, durable refresh-token persistence, recurring background
// renewal, logout. One instance per running client.
type Service struct {
	api       API
	vault     vault.Vault
	passkeys  Passkeys
	emitEvent func(eventName string, data interface{})

	mu         sync.Mutex
	phase      Phase
	session    Session
	lastError  string
	renewTimer *time.Timer
	renewing   bool

	// generation is the session epoch: bumped by every logout and every
	// accepted token exchange. In-flight work that observes a stale epoch
	// drops its result, so logout always wins.
	generation uint64

	// test hook: overrides the derived renewal interval when positive
	renewIntervalOverride time.Duration
}

// NewService creates the session controller. emitEvent may be nil.
func NewService(api API, tokenVault vault.Vault, passkeys Passkeys, emitEvent func(string, interface{})) *Service {
	return &Service{
		api:       api,
		vault:     tokenVault,
		passkeys:  passkeys,
		emitEvent: emitEvent,
		phase:     PhaseUninitialized,
	}
}

// State returns the current session snapshot
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Service) stateLocked() State {
	return State{
		Phase:           s.phase,
		User:            s.session.User,
		IsLoading:       s.session.IsLoading,
		IsAuthenticated: s.session.IsAuthenticated,
		Error:           s.lastError,
	}
}

// AccessToken returns the current access token, empty when unauthenticated
func (s *Service) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.AccessToken
}

// RestoreSession runs once at startup. A stored refresh token is exchanged
// for a fresh pair; any failure is absorbed into the unauthenticated state,
// never returned. No stored token means no network call at all.
func (s *Service) RestoreSession(ctx context.Context) {
	s.mu.Lock()
	s.phase = PhaseRestoring
	s.session.IsLoading = true
	gen := s.generation
	s.mu.Unlock()
	s.emitState()

	token, err := s.vault.Load()
	if err != nil {
		if !errors.Is(err, vault.ErrEmpty) {
			log.Printf("[AUTH] Could not read stored token: %v", err)
		}
		s.endUnauthenticated(gen)
		return
	}

	pair, err := s.api.Refresh(ctx, token)
	if err != nil {
		log.Printf("[AUTH] Stored session rejected: %v", err)
		// The stored token is dead; drop it
		if clearErr := s.vault.Clear(); clearErr != nil {
			log.Printf("[AUTH] Could not clear stored token: %v", clearErr)
		}
		s.endUnauthenticated(gen)
		return
	}

	if err := s.acceptTokens(ctx, pair, gen); err != nil {
		log.Printf("[AUTH] Session restore incomplete: %v", err)
		return
	}
	log.Println("[AUTH] Session restored")
}

func (s *Service) endUnauthenticated(gen uint64) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.clearRenewTimerLocked()
	s.session = Session{}
	s.phase = PhaseUnauthenticated
	s.mu.Unlock()
	s.emitState()
}

// Register creates an account and establishes its session. Failures set the
// visible error and propagate so the form can stay open.
func (s *Service) Register(ctx context.Context, email, password, displayName string) error {
	gen := s.beginOperation()
	pair, err := s.api.Register(ctx, email, password, displayName)
	if err != nil {
		s.failOperation(err)
		return err
	}
	return s.acceptTokens(ctx, pair, gen)
}

// LoginWithPassword authenticates with email+password
func (s *Service) LoginWithPassword(ctx context.Context, email, password string) error {
	gen := s.beginOperation()
	pair, err := s.api.LoginPassword(ctx, email, password)
	if err != nil {
		s.failOperation(err)
		return err
	}
	return s.acceptTokens(ctx, pair, gen)
}

// LoginWithPasskey authenticates via a passkey ceremony. An empty email
// allows any discoverable credential. A user-cancelled ceremony resets
// loading state silently: cancellation is not a failure and never sets the
// visible error.
func (s *Service) LoginWithPasskey(ctx context.Context, email string) error {
	gen := s.beginOperation()
	pair, err := s.passkeys.Authenticate(ctx, email)
	if errors.Is(err, passkey.ErrCancelled) {
		s.mu.Lock()
		if s.generation == gen {
			s.session.IsLoading = false
		}
		s.mu.Unlock()
		s.emitState()
		return err
	}
	if err != nil {
		s.failOperation(err)
		return err
	}
	return s.acceptTokens(ctx, pair, gen)
}

// StartDiscoverableLogin begins an autofill-style passkey login. Returns nil
// when the platform lacks conditional UI. On success the token pair is
// accepted into the session; a cancellation settles silently.
func (s *Service) StartDiscoverableLogin() *passkey.AutofillHandle {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	return s.passkeys.StartDiscoverableAuth(
		func(pair authapi.TokenPair) {
			ctx, cancel := context.WithTimeout(context.Background(), config.HTTPTimeout)
			defer cancel()
			if err := s.acceptTokens(ctx, pair, gen); err != nil && !errors.Is(err, errSuperseded) {
				log.Printf("[AUTH] Discoverable login incomplete: %v", err)
			}
		},
		func(err error) {
			s.setError(visibleMessage(err))
		},
	)
}

// Logout ends the session. The server call is best-effort; local teardown
// is unconditional and Logout never fails outward.
func (s *Service) Logout(ctx context.Context) {
	s.mu.Lock()
	refreshToken := s.session.RefreshToken
	s.clearRenewTimerLocked()
	s.generation++
	s.session = Session{}
	s.phase = PhaseUnauthenticated
	s.lastError = ""
	if err := s.vault.Clear(); err != nil {
		log.Printf("[AUTH] Could not clear stored token: %v", err)
	}
	s.mu.Unlock()

	if refreshToken != "" {
		if err := s.api.Logout(ctx, refreshToken); err != nil {
			log.Printf("[AUTH] Server logout failed (ignored): %v", err)
		}
	}
	s.emitState()
	log.Println("[AUTH] Logged out")
}

// AddPasskey registers a new passkey for the authenticated user. Ceremony
// cancellation is re-raised without touching the visible error; other
// failures set it and re-raise.
func (s *Service) AddPasskey(ctx context.Context, friendlyName string) (authapi.PasskeyRecord, error) {
	accessToken, err := s.requireAccessToken()
	if err != nil {
		return authapi.PasskeyRecord{}, err
	}

	record, err := s.passkeys.Register(ctx, accessToken, friendlyName)
	if errors.Is(err, passkey.ErrCancelled) {
		return authapi.PasskeyRecord{}, err
	}
	if err != nil {
		s.setError(visibleMessage(err))
		return authapi.PasskeyRecord{}, err
	}
	return record, nil
}

// ListPasskeys lists the authenticated user's passkeys
func (s *Service) ListPasskeys(ctx context.Context) ([]authapi.PasskeyRecord, error) {
	accessToken, err := s.requireAccessToken()
	if err != nil {
		return nil, err
	}
	return s.api.ListPasskeys(ctx, accessToken)
}

// RemovePasskey deletes a passkey by id
func (s *Service) RemovePasskey(ctx context.Context, id string) error {
	accessToken, err := s.requireAccessToken()
	if err != nil {
		return err
	}
	return s.api.DeletePasskey(ctx, accessToken, id)
}

func (s *Service) requireAccessToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.IsAuthenticated || s.session.AccessToken == "" {
		return "", ErrUnauthenticated
	}
	return s.session.AccessToken, nil
}

func (s *Service) beginOperation() uint64 {
	s.mu.Lock()
	s.session.IsLoading = true
	s.lastError = ""
	gen := s.generation
	s.mu.Unlock()
	s.emitState()
	return gen
}

func (s *Service) failOperation(err error) {
	s.mu.Lock()
	s.session.IsLoading = false
	s.lastError = visibleMessage(err)
	s.mu.Unlock()
	s.emitState()
}

func (s *Service) setError(message string) {
	s.mu.Lock()
	s.lastError = message
	s.mu.Unlock()
	s.emitState()
}

// acceptTokens is the single success path for every token exchange: persist
// the refresh token, resolve the user, install the session and arm renewal.
// The session is not considered established without a resolvable user; a
// failed user fetch leaves the client unauthenticated without a visible
// error. gen is the epoch observed when the operation began; a stale epoch
// means a logout won the race and the result is dropped.
func (s *Service) acceptTokens(ctx context.Context, pair authapi.TokenPair, gen uint64) error {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return errSuperseded
	}
	// Persist before anything else can fail: the refresh token is the only
	// durable credential. Only a successful exchange ever overwrites it.
	if err := s.vault.Store(pair.RefreshToken); err != nil {
		log.Printf("[AUTH] Could not persist refresh token: %v", err)
	}
	s.mu.Unlock()

	user, err := s.api.Me(ctx, pair.AccessToken)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return errSuperseded
	}
	s.clearRenewTimerLocked()
	s.generation++

	if err != nil {
		s.session = Session{}
		s.phase = PhaseUnauthenticated
		s.mu.Unlock()
		s.emitState()
		return err
	}

	s.session = Session{
		User:            &user,
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		IsLoading:       false,
		IsAuthenticated: true,
	}
	s.phase = PhaseAuthenticated
	s.lastError = ""
	s.armRenewLocked(tokenLifetime(pair))
	s.mu.Unlock()
	s.emitState()
	return nil
}

// Background renewal. A single-shot timer, re-armed only after the cycle
// settles, keeps cycles strictly sequential; overlapping renewals would race
// refresh-token rotation, since each refresh token is single-use.

func (s *Service) armRenewLocked(lifetime time.Duration) {
	s.clearRenewTimerLocked()
	interval := s.renewIntervalOverride
	if interval <= 0 {
		interval = config.RenewInterval(lifetime)
	}
	gen := s.generation
	s.renewTimer = time.AfterFunc(interval, func() {
		s.renewCycle(gen)
	})
}

func (s *Service) clearRenewTimerLocked() {
	if s.renewTimer != nil {
		s.renewTimer.Stop()
		s.renewTimer = nil
	}
}

// renewCycle exchanges the current refresh token for a fresh pair. Failure
// is terminal for the session: the controller logs out rather than retrying,
// and never surfaces a visible error for an action the user did not take.
func (s *Service) renewCycle(gen uint64) {
	s.mu.Lock()
	if s.generation != gen || s.renewing || !s.session.IsAuthenticated {
		s.mu.Unlock()
		return
	}
	s.renewing = true
	refreshToken := s.session.RefreshToken
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.renewing = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*config.HTTPTimeout)
	defer cancel()

	pair, err := s.api.Refresh(ctx, refreshToken)
	if err == nil {
		err = s.acceptTokens(ctx, pair, gen)
	}
	if err == nil {
		log.Println("[AUTH] Access token renewed")
		return
	}
	if errors.Is(err, errSuperseded) {
		// A logout (or newer exchange) already owns the session
		return
	}
	log.Printf("[AUTH] Renewal failed, ending session: %v", err)
	s.Logout(context.Background())
}

// HandleExternalVaultChange reacts to another instance touching the durable
// token slot: if this instance believes it is authenticated but the slot is
// now empty, the other instance logged out and this one follows.
func (s *Service) HandleExternalVaultChange() {
	s.mu.Lock()
	authenticated := s.session.IsAuthenticated
	s.mu.Unlock()
	if !authenticated {
		return
	}
	if _, err := s.vault.Load(); errors.Is(err, vault.ErrEmpty) {
		log.Println("[AUTH] Durable token cleared externally - ending session")
		s.Logout(context.Background())
	}
}

func (s *Service) emitState() {
	if s.emitEvent == nil {
		return
	}
	s.emitEvent("auth:changed", s.State())
}
