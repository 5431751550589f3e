package api

import (
	"net/http"
	"time"
)

type initialTokenResponse struct {
	Success                   bool   `json:"success"`
	UserRefreshToken          string `json:"user_refresh_token"`
	UserRefreshTokenExpiresAt string `json:"user_refresh_token_expires_at"`
	Message                   string `json:"message"`
}

type rotationResponse struct {
	Success                   bool   `json:"success"`
	AccessToken               string `json:"access_token"`
	UserRefreshToken          string `json:"user_refresh_token"`
	UserRefreshTokenExpiresAt string `json:"user_refresh_token_expires_at"`
	ExpiresIn                 int    `json:"expires_in"`
	NextRotation              string `json:"next_rotation"`
}

// handleInitialToken issues the first user refresh token for a provider.
// Admin auth already passed; from here the token is the proof of sign-off
// for subsequent rotation calls.
func (s *Server) handleInitialToken(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.provider(w, r)
	if !ok {
		return
	}

	token, expiresAt, err := s.userTokens.Issue(cfg.Name)
	if err != nil {
		writeRotationError(w, err)
		return
	}
	s.logger.Info("issued user refresh token for provider %s", cfg.Name)

	writeJSON(w, http.StatusOK, initialTokenResponse{
		Success:                   true,
		UserRefreshToken:          token,
		UserRefreshTokenExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		Message:                   "User refresh token generated. Use this as Bearer token for subsequent token rotation requests.",
	})
}

// handleTokenRotation rotates the provider's access token on demand and
// re-issues the user refresh token, invalidating the one just presented.
func (s *Server) handleTokenRotation(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.provider(w, r)
	if !ok {
		return
	}

	if err := s.engine.Rotate(r.Context(), cfg); err != nil {
		writeRotationError(w, err)
		return
	}

	userToken, expiresAt, err := s.userTokens.Issue(cfg.Name)
	if err != nil {
		writeRotationError(w, err)
		return
	}

	accessToken, _ := s.store.AccessToken(cfg.Name)
	writeJSON(w, http.StatusOK, rotationResponse{
		Success:                   true,
		AccessToken:               accessToken,
		UserRefreshToken:          userToken,
		UserRefreshTokenExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		ExpiresIn:                 int(s.accessTokenTTL / time.Second),
		NextRotation:              time.Now().Add(s.accessTokenTTL).UTC().Format(time.RFC3339),
	})
}
