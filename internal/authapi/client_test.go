package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginPasswordSendsCredentialsAndDecodesPair(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"bearer","expires_in":900}`))
	}))
	defer server.Close()

	client := New(server.URL)
	pair, err := client.LoginPassword(context.Background(), "a@x.com", "pw123456")
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/auth/login/password" {
		t.Fatalf("expected POST /v1/auth/login/password, got %s %s", gotMethod, gotPath)
	}
	if gotBody["email"] != "a@x.com" || gotBody["password"] != "pw123456" {
		t.Fatalf("unexpected request body: %v", gotBody)
	}
	if pair.AccessToken != "at-1" || pair.RefreshToken != "rt-1" || pair.ExpiresIn != 900 {
		t.Fatalf("unexpected token pair: %+v", pair)
	}
}

func TestMeSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":"u1","email":"a@x.com","display_name":"Ana","is_active":true,"is_verified":true}`))
	}))
	defer server.Close()

	user, err := New(server.URL).Me(context.Background(), "at-1")
	if err != nil {
		t.Fatalf("expected me to succeed, got %v", err)
	}
	if gotAuth != "Bearer at-1" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if user.ID != "u1" || user.Email != "a@x.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestErrorResponseYieldsAPIErrorWithDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Invalid credentials"}`))
	}))
	defer server.Close()

	_, err := New(server.URL).LoginPassword(context.Background(), "a@x.com", "wrong")
	if err == nil {
		t.Fatalf("expected an error for 401 response")
	}
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Detail != "Invalid credentials" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected IsStatus to match 401")
	}
}

func TestErrorResponseWithoutDetailLeavesDetailEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	_, err := New(server.URL).Refresh(context.Background(), "rt-1")
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Detail != "" {
		t.Fatalf("expected empty detail for non-json body, got %q", apiErr.Detail)
	}
}

func TestPasskeyLoginOptionsUnwrapsEnvelope(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"options":{"challenge":"Y2hhbGxlbmdl","rpId":"farmdb.example","timeout":60000,"userVerification":"preferred","_challenge_key":"ck-42"}}`))
	}))
	defer server.Close()

	opts, err := New(server.URL).PasskeyLoginOptions(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("expected options request to succeed, got %v", err)
	}
	if gotBody["email"] != "a@x.com" {
		t.Fatalf("expected email in request body, got %v", gotBody)
	}
	if opts.Challenge != "Y2hhbGxlbmdl" || opts.ChallengeKey != "ck-42" {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestPasskeyLoginVerifyWrapsCredential(t *testing.T) {
	var gotBody map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-2","token_type":"bearer","expires_in":900}`))
	}))
	defer server.Close()

	credential := json.RawMessage(`{"id":"cred-1","_challenge_key":"ck-42"}`)
	pair, err := New(server.URL).PasskeyLoginVerify(context.Background(), credential)
	if err != nil {
		t.Fatalf("expected verify to succeed, got %v", err)
	}
	if string(gotBody["credential"]) != string(credential) {
		t.Fatalf("expected credential to be forwarded unmodified, got %s", gotBody["credential"])
	}
	if pair.AccessToken != "at-2" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}

func TestListPasskeysUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"passkeys":[{"id":"pk-1","friendly_name":"Laptop","device_type":"single_device","backed_up":false,"created_at":"2026-08-01T10:00:00Z"}]}`))
	}))
	defer server.Close()

	keys, err := New(server.URL).ListPasskeys(context.Background(), "at-1")
	if err != nil {
		t.Fatalf("expected list to succeed, got %v", err)
	}
	if len(keys) != 1 || keys[0].ID != "pk-1" || keys[0].FriendlyName != "Laptop" {
		t.Fatalf("unexpected passkeys: %+v", keys)
	}
}

func TestDeletePasskeyEscapesID(t *testing.T) {
	var gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := New(server.URL).DeletePasskey(context.Background(), "at-1", "pk/1"); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/v1/auth/passkeys/pk%2F1" {
		t.Fatalf("expected DELETE with escaped id, got %s %s", gotMethod, gotPath)
	}
}

func TestLogoutSendsRefreshToken(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := New(server.URL).Logout(context.Background(), "rt-1"); err != nil {
		t.Fatalf("expected logout to succeed, got %v", err)
	}
	if gotBody["refresh_token"] != "rt-1" {
		t.Fatalf("expected refresh token in body, got %v", gotBody)
	}
}

func TestRequestErrorIsNotAPIError(t *testing.T) {
	client := New("http://127.0.0.1:1")
	_, err := client.Me(context.Background(), "at-1")
	if err == nil {
		t.Fatalf("expected connection error")
	}
	if _, ok := AsAPIError(err); ok {
		t.Fatalf("transport failure should not be an APIError: %v", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("unexpected APIError in chain")
	}
}

func TestTokenPairLifetime(t *testing.T) {
	if got := (TokenPair{ExpiresIn: 900}).Lifetime(); got.Seconds() != 900 {
		t.Fatalf("expected 900s lifetime, got %v", got)
	}
	if got := (TokenPair{}).Lifetime(); got != 0 {
		t.Fatalf("expected zero lifetime when expires_in absent, got %v", got)
	}
}
