package auth

import "errors"

// Error messages double as the client-facing {"error": ...} bodies, so
// the wording is part of the wire contract.
var (
	ErrMalformedKey  = errors.New("Malformed TOTP key")
	ErrUnknownDevice = errors.New("Device not registered or expired")
	ErrInvalidCode   = errors.New("Invalid TOTP code")
	ErrInvalidKey    = errors.New("Invalid or revoked API key")
)

// Identity is the per-request result of authentication: who the client is
// for rate limiting and analytics.
type Identity struct {
	ClientID      string
	Tier          string
	Credential    string
	Authenticated bool
}

// DeviceDirectory is the registry surface the resolver needs. Lookup must
// treat inactive and expired devices as absent.
type DeviceDirectory interface {
	Lookup(browserID string) (sharedSecret string, ok bool)
	Touch(browserID, ip string)
}

// Resolver authenticates a candidate API key against the credential store
// and, when a device directory is installed, the TOTP scheme.
type Resolver struct {
	Credentials *CredentialStore
	Devices     DeviceDirectory
}

// Resolve maps (candidate key, client ip) to an Identity.
//
// An empty candidate is anonymous: the IP becomes the client ID on the
// "free" tier. A "totp_" candidate is parsed and verified against the
// device directory; without a directory it falls through to the static
// path. Anything else must match an active credential secret.
func (r *Resolver) Resolve(candidate, ip string) (Identity, error) {
	if candidate == "" {
		return Identity{ClientID: ip, Tier: "free"}, nil
	}

	if IsTOTPKey(candidate) && r.Devices != nil {
		browserID, code, err := ParseKey(candidate)
		if err != nil {
			return Identity{}, ErrMalformedKey
		}
		secret, ok := r.Devices.Lookup(browserID)
		if !ok {
			return Identity{}, ErrUnknownDevice
		}
		if !ValidateCode(browserID, secret, code) {
			return Identity{}, ErrInvalidCode
		}
		r.Devices.Touch(browserID, ip)
		return Identity{
			ClientID:      browserID,
			Tier:          "free",
			Credential:    candidate,
			Authenticated: true,
		}, nil
	}

	cred, ok := r.Credentials.BySecret(candidate)
	if !ok {
		return Identity{}, ErrInvalidKey
	}
	return Identity{
		ClientID:      cred.ID,
		Tier:          cred.Tier,
		Credential:    candidate,
		Authenticated: true,
	}, nil
}
