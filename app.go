package main

import (
	"context"
	"errors"
	"log"
	"sync"

	"farmdb/internal/auth"
	"farmdb/internal/authapi"
	"farmdb/internal/config"
	"farmdb/internal/database"
	"farmdb/internal/passkey"
	"farmdb/internal/vault"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// App struct — central Wails binding point, connects all services
type App struct {
	ctx context.Context

	db           *database.Service
	tokenVault   vault.Vault
	vaultWatcher *vault.Watcher
	api          *authapi.Client
	bridge       *passkey.Bridge
	passkeys     *passkey.Service
	auth         *auth.Service

	autofillMu     sync.Mutex
	autofillHandle *passkey.AutofillHandle
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{}
}

// Startup is called when the app starts: wires the local store, the token
// vault, the auth API client, the passkey bridge and the session controller,
// then restores any stored session in the background
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
	log.Println("[FARMDB] Starting up...")

	if err := config.EnsureDataDirs(); err != nil {
		log.Printf("[FARMDB] Error creating data dirs: %v", err)
	}

	dbService, err := database.NewService()
	if err != nil {
		log.Printf("[FARMDB] Error initializing local store: %v", err)
	} else {
		a.db = dbService
	}

	a.tokenVault = vault.Open(a.db)

	a.api = authapi.New(config.APIBaseURL())
	log.Printf("[FARMDB] Auth API at %s", config.APIBaseURL())

	a.bridge = passkey.NewBridge(ctx)
	a.passkeys = passkey.NewService(a.api, a.bridge)

	a.auth = auth.NewService(a.api, a.tokenVault, a.passkeys, func(eventName string, data interface{}) {
		if a.ctx == nil {
			return
		}
		runtime.EventsEmit(a.ctx, eventName, data)
	})

	watcher, err := vault.WatchExternalChanges(a.tokenVault, a.auth.HandleExternalVaultChange)
	if err != nil {
		log.Printf("[FARMDB] Could not watch token store: %v", err)
	} else {
		a.vaultWatcher = watcher
	}

	go func() {
		a.auth.RestoreSession(ctx)
		runtime.EventsEmit(a.ctx, "auth:restored", a.auth.State())
	}()
}

// DomReady is called when the frontend DOM is ready
func (a *App) DomReady(ctx context.Context) {
	runtime.EventsEmit(ctx, "app:hydrated", map[string]interface{}{
		"version": config.AppVersion,
		"auth":    a.auth.State(),
	})
}

// Shutdown is called on app teardown
func (a *App) Shutdown(ctx context.Context) {
	a.PasskeyCancelAutofill()
	if a.vaultWatcher != nil {
		_ = a.vaultWatcher.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	log.Println("[FARMDB] Shutdown complete")
}

// === Auth Bindings (exposed to the frontend) ===

// AuthState returns the current session snapshot
func (a *App) AuthState() auth.State {
	return a.auth.State()
}

// AuthRegister creates an account and logs it in
func (a *App) AuthRegister(email, password, displayName string) error {
	return a.auth.Register(a.ctx, email, password, displayName)
}

// AuthLoginPassword logs in with email and password
func (a *App) AuthLoginPassword(email, password string) error {
	return a.auth.LoginWithPassword(a.ctx, email, password)
}

// AuthLoginPasskey logs in with a passkey; empty email allows any
// discoverable credential. A cancelled ceremony is not an error.
func (a *App) AuthLoginPasskey(email string) error {
	err := a.auth.LoginWithPasskey(a.ctx, email)
	if errors.Is(err, passkey.ErrCancelled) {
		return nil
	}
	return err
}

// AuthLogout ends the session; always succeeds locally
func (a *App) AuthLogout() {
	a.auth.Logout(a.ctx)
}

// === Passkey Bindings ===

// PasskeyAdd registers a new passkey for the current user
func (a *App) PasskeyAdd(friendlyName string) (authapi.PasskeyRecord, error) {
	return a.auth.AddPasskey(a.ctx, friendlyName)
}

// PasskeyList lists the current user's passkeys
func (a *App) PasskeyList() ([]authapi.PasskeyRecord, error) {
	return a.auth.ListPasskeys(a.ctx)
}

// PasskeyRemove deletes a passkey by id
func (a *App) PasskeyRemove(id string) error {
	return a.auth.RemovePasskey(a.ctx, id)
}

// PasskeyCapabilities reports the platform's ceremony affordances
func (a *App) PasskeyCapabilities() passkey.Capabilities {
	return a.passkeys.Capabilities(a.ctx)
}

// PasskeyStartAutofill begins an autofill-style discoverable login; a new
// call supersedes any ceremony already in flight. Returns false when the
// platform lacks conditional UI.
func (a *App) PasskeyStartAutofill() bool {
	handle := a.auth.StartDiscoverableLogin()
	if handle == nil {
		return false
	}

	a.autofillMu.Lock()
	previous := a.autofillHandle
	a.autofillHandle = handle
	a.autofillMu.Unlock()
	if previous != nil {
		previous.Cancel()
	}
	return true
}

// PasskeyCancelAutofill cancels the in-flight discoverable login, if any
func (a *App) PasskeyCancelAutofill() {
	a.autofillMu.Lock()
	handle := a.autofillHandle
	a.autofillHandle = nil
	a.autofillMu.Unlock()
	if handle != nil {
		handle.Cancel()
	}
}

// === Passkey Bridge Bindings (called by the frontend ceremony shim) ===

// PasskeyBridgeCapabilities records the webview's capability probe results
func (a *App) PasskeyBridgeCapabilities(available, autofill, platformAuthenticator bool) {
	a.bridge.ReportCapabilities(passkey.Capabilities{
		Available:             available,
		Autofill:              autofill,
		PlatformAuthenticator: platformAuthenticator,
	})
}

// PasskeyBridgeResult resolves a pending ceremony with the webview's
// credential JSON, or a DOMException name+message on failure
func (a *App) PasskeyBridgeResult(requestID, credentialJSON, errName, errMessage string) {
	a.bridge.Complete(requestID, credentialJSON, errName, errMessage)
}
