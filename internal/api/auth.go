package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ordermesh/tokengate/internal/errors"
	"github.com/ordermesh/tokengate/internal/rotation"
	"github.com/ordermesh/tokengate/internal/totp"
)

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}

// adminAuth gates the initial token route: basic auth against the admin
// credentials plus a valid TOTP code in the request body. The handler does
// not read the body, so consuming it here is fine.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.CodeUnauthorized, "basic auth credentials missing")
			return
		}
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.adminUser)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) == 1
		if !userOK || !passOK {
			writeError(w, http.StatusForbidden, errors.CodeInvalidCredentials, "invalid admin credentials")
			return
		}

		var body struct {
			TwoFactorCode string `json:"twoFactorCode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TwoFactorCode == "" {
			writeError(w, http.StatusBadRequest, errors.CodeInvalidCredentials, "two-factor code missing")
			return
		}
		if !totp.Verify(s.twoFactorSecret, body.TwoFactorCode) {
			writeError(w, http.StatusForbidden, errors.CodeInvalidCredentials, "invalid two-factor code")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userTokenAuth gates manual rotation: the bearer must be the user refresh
// token most recently issued for the route's provider.
func (s *Server) userTokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.ToLower(chi.URLParam(r, "provider"))
		if _, ok := s.providers[name]; !ok {
			// Let the handler produce the 400 with the provider list.
			next.ServeHTTP(w, r)
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.CodeUnauthorized, "bearer token missing")
			return
		}
		switch s.userTokens.Verify(name, token) {
		case rotation.VerifyValid:
			next.ServeHTTP(w, r)
		case rotation.VerifyExpired:
			writeError(w, http.StatusUnauthorized, errors.CodeUnauthorized, "user refresh token expired")
		default:
			writeError(w, http.StatusUnauthorized, errors.CodeUnauthorized, "invalid user refresh token")
		}
	})
}

// accessTokenAuth gates the order routes: the bearer must equal the current
// upstream access token of the commerce provider.
func (s *Server) accessTokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.CodeUnauthorized, "bearer token missing")
			return
		}
		current, ok := s.store.AccessToken(s.commerceP)
		if !ok || current == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(current)) != 1 {
			writeError(w, http.StatusUnauthorized, errors.CodeUnauthorized, "invalid access token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
