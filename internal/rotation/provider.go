// Package rotation manages the credential lifecycle for every configured
// provider: the access/refresh token exchange, the independent client secret
// rotation cycle, the internally issued user refresh tokens that gate manual
// rotation, and the background scheduler driving both cycles.
package rotation

import (
	"strings"
	"time"

	"github.com/ordermesh/tokengate/internal/secure"
)

// RefreshTokenExpired is the sentinel stored in place of a refresh token once
// the provider has rejected it. Rotation fails fast on this value until an
// operator supplies a fresh initial token out of band.
const RefreshTokenExpired = "expired"

// ProviderConfig describes how to talk to one provider's token endpoint and,
// optionally, its client secret rotation endpoint. Immutable after load
// except for the sealed ClientSecret buffer, which the secret rotation cycle
// replaces in place.
type ProviderConfig struct {
	Name             string
	TokenURL         string
	Method           string
	ContentType      string
	BodyTemplate     string
	AccessField      string
	RefreshField     string
	RotationEnabled  bool
	RotationInterval time.Duration
	Headers          map[string]string
	Extra            map[string]string

	ClientID     string
	ClientSecret *secure.Buffer

	SecretRotation SecretRotationConfig
}

// SecretRotationConfig describes the secondary cycle that rotates the client
// secret itself.
type SecretRotationConfig struct {
	Enabled       bool
	Interval      time.Duration
	Validity      time.Duration
	URL           string
	BodyTemplate  string
	ResponseField string
	ApplicationID string
	DisplayName   string
}

// Interval returns the provider's access token rotation interval, falling
// back to def when unset.
func (p *ProviderConfig) Interval(def time.Duration) time.Duration {
	if p.RotationInterval > 0 {
		return p.RotationInterval
	}
	return def
}

// NeedsRefreshToken reports whether the provider's body template references
// the external refresh token.
func (p *ProviderConfig) NeedsRefreshToken() bool {
	return strings.Contains(p.BodyTemplate, ".RefreshToken")
}
