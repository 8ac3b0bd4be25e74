package passkey

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"farmdb/internal/authapi"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// Translation between the server's ceremony option payloads and the shapes
// the platform ceremony expects. Pure pass-through: no field is computed or
// defaulted, unrecognized policy strings travel as-is and the platform gets
// to reject them. Given well-formed server output these never fail.

// RegistrationCeremonyOptions maps server registration options onto the
// WebAuthn credential-creation shape
func RegistrationCeremonyOptions(opts authapi.RegistrationOptions) protocol.CredentialCreation {
	params := make([]protocol.CredentialParameter, 0, len(opts.PubKeyCredParams))
	for _, p := range opts.PubKeyCredParams {
		params = append(params, protocol.CredentialParameter{
			Type:      protocol.CredentialType(p.Type),
			Algorithm: webauthncose.COSEAlgorithmIdentifier(p.Alg),
		})
	}

	var residentKey protocol.ResidentKeyRequirement
	if opts.AuthenticatorSelection.ResidentKey != "" {
		residentKey = protocol.ResidentKeyRequirement(opts.AuthenticatorSelection.ResidentKey)
	}

	return protocol.CredentialCreation{
		Response: protocol.PublicKeyCredentialCreationOptions{
			Challenge: decodeBase64URL(opts.Challenge),
			RelyingParty: protocol.RelyingPartyEntity{
				CredentialEntity: protocol.CredentialEntity{Name: opts.RP.Name},
				ID:               opts.RP.ID,
			},
			User: protocol.UserEntity{
				CredentialEntity: protocol.CredentialEntity{Name: opts.User.Name},
				DisplayName:      opts.User.DisplayName,
				ID:               decodeBase64URL(opts.User.ID),
			},
			Parameters:            params,
			Timeout:               opts.Timeout,
			CredentialExcludeList: descriptors(opts.ExcludeCredentials),
			AuthenticatorSelection: protocol.AuthenticatorSelection{
				ResidentKey:      residentKey,
				UserVerification: protocol.UserVerificationRequirement(opts.AuthenticatorSelection.UserVerification),
			},
			Attestation: protocol.ConveyancePreference(opts.Attestation),
		},
	}
}

// AuthenticationCeremonyOptions maps server authentication options onto the
// WebAuthn credential-request shape. The _challenge_key is not part of the
// ceremony; it rides along separately until verify.
func AuthenticationCeremonyOptions(opts authapi.AuthenticationOptions) protocol.CredentialAssertion {
	return protocol.CredentialAssertion{
		Response: protocol.PublicKeyCredentialRequestOptions{
			Challenge:          decodeBase64URL(opts.Challenge),
			Timeout:            opts.Timeout,
			RelyingPartyID:     opts.RPID,
			AllowedCredentials: descriptors(opts.AllowCredentials),
			UserVerification:   protocol.UserVerificationRequirement(opts.UserVerification),
		},
	}
}

// WithChallengeKey normalizes an authenticator response into the
// transport-ready credential object for /login/passkey/verify: the server's
// opaque challenge key is injected unmodified next to the ceremony fields
func WithChallengeKey(credential json.RawMessage, challengeKey string) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(credential, &fields); err != nil {
		return nil, fmt.Errorf("malformed ceremony response: %w", err)
	}
	encodedKey, err := json.Marshal(challengeKey)
	if err != nil {
		return nil, err
	}
	fields["_challenge_key"] = encodedKey
	return json.Marshal(fields)
}

func descriptors(in []authapi.CredentialDescriptor) []protocol.CredentialDescriptor {
	if len(in) == 0 {
		return nil
	}
	out := make([]protocol.CredentialDescriptor, 0, len(in))
	for _, d := range in {
		transports := make([]protocol.AuthenticatorTransport, 0, len(d.Transports))
		for _, t := range d.Transports {
			transports = append(transports, protocol.AuthenticatorTransport(t))
		}
		out = append(out, protocol.CredentialDescriptor{
			Type:         protocol.CredentialType(d.Type),
			CredentialID: decodeBase64URL(d.ID),
			Transport:    transports,
		})
	}
	return out
}

// decodeBase64URL is total: padded and unpadded input both decode, anything
// else passes through as raw bytes for the platform to reject
func decodeBase64URL(value string) protocol.URLEncodedBase64 {
	if decoded, err := base64.RawURLEncoding.DecodeString(value); err == nil {
		return decoded
	}
	if decoded, err := base64.URLEncoding.DecodeString(value); err == nil {
		return decoded
	}
	return protocol.URLEncodedBase64(value)
}
