package rotation

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"
)

// VerifyResult classifies a user refresh token check. Verification never
// returns an error; every non-valid condition has a distinguishable reason.
type VerifyResult int

const (
	VerifyValid VerifyResult = iota
	VerifyExpired
	VerifyMismatch
)

func (r VerifyResult) String() string {
	switch r {
	case VerifyValid:
		return "valid"
	case VerifyExpired:
		return "expired"
	default:
		return "mismatch"
	}
}

// DefaultUserTokenValidity is how long an issued user refresh token may be
// used to trigger rotations.
const DefaultUserTokenValidity = time.Hour

// UserTokens issues and checks the internally generated tokens that gate who
// may trigger a rotation. They are deliberately distinct from the provider's
// own refresh token: holding one proves admin sign-off, not possession of
// the upstream secret.
type UserTokens struct {
	store *Store
}

// NewUserTokens creates an issuer backed by the credential store.
func NewUserTokens(store *Store) *UserTokens {
	return &UserTokens{store: store}
}

// Issue generates a fresh 256-bit random token for the provider, records it
// with its creation time, and returns the token with its expiry instant.
func (u *UserTokens) Issue(provider string) (string, time.Time, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("generate user refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	now := time.Now()
	var validity time.Duration
	ok := u.store.Update(provider, func(r *TokenRecord) {
		if r.UserTokenValidity <= 0 {
			r.UserTokenValidity = DefaultUserTokenValidity
		}
		r.UserToken = token
		r.UserTokenCreatedAt = now
		validity = r.UserTokenValidity
	})
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown provider %q", provider)
	}
	return token, now.Add(validity), nil
}

// Verify checks a presented token against the provider's current one.
func (u *UserTokens) Verify(provider, presented string) VerifyResult {
	rec, ok := u.store.Get(provider)
	if !ok || rec.UserToken == "" || presented == "" {
		return VerifyMismatch
	}
	if subtle.ConstantTimeCompare([]byte(rec.UserToken), []byte(presented)) != 1 {
		return VerifyMismatch
	}
	if time.Now().After(rec.UserTokenCreatedAt.Add(rec.UserTokenValidity)) {
		return VerifyExpired
	}
	return VerifyValid
}
