package authapi

import "time"

// TokenPair is the credential pair minted by every successful auth operation
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// User is the public identity returned by /me
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsVerified  bool   `json:"is_verified"`
}

// PasskeyRecord is a server-owned passkey credential summary
type PasskeyRecord struct {
	ID           string     `json:"id"`
	FriendlyName string     `json:"friendly_name,omitempty"`
	DeviceType   string     `json:"device_type,omitempty"`
	BackedUp     bool       `json:"backed_up"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// RelyingParty identifies the WebAuthn relying party in registration options
type RelyingParty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CeremonyUser is the user entity embedded in registration options
type CeremonyUser struct {
	ID          string `json:"id"` // base64url
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// CredentialParameter is one allowed public-key algorithm
type CredentialParameter struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

// CredentialDescriptor references an existing credential by id
type CredentialDescriptor struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"` // base64url
	Transports []string `json:"transports,omitempty"`
}

// AuthenticatorSelection carries the server's authenticator policy.
// Values are opaque strings; unknown enum values pass through untouched.
type AuthenticatorSelection struct {
	ResidentKey      string `json:"residentKey,omitempty"`
	UserVerification string `json:"userVerification,omitempty"`
}

// RegistrationOptions is the server payload for a passkey registration ceremony
type RegistrationOptions struct {
	Challenge              string                 `json:"challenge"` // base64url
	RP                     RelyingParty           `json:"rp"`
	User                   CeremonyUser           `json:"user"`
	PubKeyCredParams       []CredentialParameter  `json:"pubKeyCredParams"`
	Timeout                int                    `json:"timeout,omitempty"` // milliseconds
	ExcludeCredentials     []CredentialDescriptor `json:"excludeCredentials,omitempty"`
	AuthenticatorSelection AuthenticatorSelection `json:"authenticatorSelection"`
	Attestation            string                 `json:"attestation,omitempty"`
}

// AuthenticationOptions is the server payload for a passkey login ceremony.
// ChallengeKey binds the eventual response to this exact challenge and must
// be echoed back unmodified on verify.
type AuthenticationOptions struct {
	Challenge        string                 `json:"challenge"` // base64url
	Timeout          int                    `json:"timeout,omitempty"`
	RPID             string                 `json:"rpId"`
	UserVerification string                 `json:"userVerification,omitempty"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials,omitempty"`
	ChallengeKey     string                 `json:"_challenge_key"`
}
