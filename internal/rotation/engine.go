package rotation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ordermesh/tokengate/internal/errors"
	"github.com/ordermesh/tokengate/internal/logging"
	"github.com/ordermesh/tokengate/internal/telemetry"
)

// Engine performs the access token rotation exchange for one provider at a
// time, updating the credential store on success.
type Engine struct {
	store  *Store
	client *http.Client
	logger *logging.Logger
}

// NewEngine creates a rotation engine. The HTTP client carries a bounded
// timeout so a hung token endpoint cannot stall the scheduler forever.
func NewEngine(store *Store, logger *logging.Logger) *Engine {
	return &Engine{
		store:  store,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// NewEngineWithClient creates an engine with a custom HTTP client. Used in
// tests.
func NewEngineWithClient(store *Store, client *http.Client, logger *logging.Logger) *Engine {
	return &Engine{store: store, client: client, logger: logger}
}

// Rotate exchanges the provider's refresh token for a fresh access token.
// Providers with rotation disabled are an intentional no-op, not an error.
// Every failure path returns a typed *errors.RotationError; the credential
// store is left untouched unless the exchange fully succeeded (with the one
// exception of the expired sentinel, which is written so later calls fail
// fast without a network round-trip).
func (e *Engine) Rotate(ctx context.Context, cfg *ProviderConfig) error {
	if !cfg.RotationEnabled {
		e.logger.Debug("rotation disabled for provider %s, skipping", cfg.Name)
		return nil
	}

	rec, ok := e.store.Get(cfg.Name)
	if !ok {
		return errors.Rotation(errors.CodeInvalidTokenName, cfg.Name, "unknown provider")
	}

	if rec.RefreshToken == RefreshTokenExpired || (cfg.NeedsRefreshToken() && rec.RefreshToken == "") {
		e.store.Update(cfg.Name, func(r *TokenRecord) {
			r.RefreshToken = RefreshTokenExpired
		})
		err := errors.Rotation(errors.CodeInitialTokenExpired, cfg.Name,
			"initial refresh token has expired or is missing")
		e.fail(cfg.Name, err)
		return err
	}

	secret, err := cfg.ClientSecret.Reveal()
	if err != nil {
		rerr := &errors.RotationError{
			Code:     errors.CodeTokenRotationFailed,
			Provider: cfg.Name,
			Message:  "unable to open client secret",
			Err:      err,
		}
		e.fail(cfg.Name, rerr)
		return rerr
	}

	body, err := RenderTokenBody(cfg, rec.RefreshToken, secret)
	if err != nil {
		rerr := &errors.RotationError{
			Code:     errors.CodeTokenRotationFailed,
			Provider: cfg.Name,
			Message:  "request body rendering failed",
			Err:      err,
		}
		e.fail(cfg.Name, rerr)
		return rerr
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.TokenURL, strings.NewReader(body))
	if err != nil {
		rerr := &errors.RotationError{Code: errors.CodeTokenRotationFailed, Provider: cfg.Name, Err: err}
		e.fail(cfg.Name, rerr)
		return rerr
	}
	req.Header.Set("Content-Type", cfg.ContentType)
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		rerr := &errors.RotationError{
			Code:     errors.CodeTokenRotationFailed,
			Provider: cfg.Name,
			Message:  "token endpoint unreachable",
			Err:      err,
		}
		e.fail(cfg.Name, rerr)
		return rerr
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		rerr := &errors.RotationError{Code: errors.CodeTokenRotationFailed, Provider: cfg.Name, Err: err}
		e.fail(cfg.Name, rerr)
		return rerr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rerr := errors.Rotation(errors.CodeTokenRotationFailed, cfg.Name,
			"%s", upstreamError(respBody, resp.StatusCode))
		e.fail(cfg.Name, rerr)
		return rerr
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		rerr := errors.Rotation(errors.CodeInvalidTokenResponse, cfg.Name, "response is not JSON")
		e.fail(cfg.Name, rerr)
		return rerr
	}

	accessToken, _ := parsed[cfg.AccessField].(string)
	if accessToken == "" {
		rerr := errors.Rotation(errors.CodeInvalidTokenResponse, cfg.Name,
			"response missing %q field", cfg.AccessField)
		e.fail(cfg.Name, rerr)
		return rerr
	}

	// The refresh token is retained when the provider does not return a new
	// one; some providers only re-issue it sporadically.
	refreshToken := rec.RefreshToken
	if v, ok := parsed[cfg.RefreshField].(string); ok && v != "" {
		refreshToken = v
	}

	e.store.Update(cfg.Name, func(r *TokenRecord) {
		r.AccessToken = accessToken
		r.RefreshToken = refreshToken
		r.RotatedAt = time.Now()
	})

	telemetry.RotationsTotal.WithLabelValues(cfg.Name, "success").Inc()
	e.logger.Info("rotated access token for provider %s", cfg.Name)
	return nil
}

func (e *Engine) fail(provider string, err *errors.RotationError) {
	telemetry.RotationsTotal.WithLabelValues(provider, "failure").Inc()
	e.logger.Error("token rotation failed for %s (%s): %v", provider, err.Code, err)
}

// upstreamError extracts the OAuth-style error/error_description pair from a
// failed exchange, falling back to the HTTP status.
func upstreamError(body []byte, status int) string {
	var parsed struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Description != "" && parsed.Error != "":
			return fmt.Sprintf("%s: %s", parsed.Error, parsed.Description)
		case parsed.Description != "":
			return parsed.Description
		case parsed.Error != "":
			return parsed.Error
		}
	}
	return fmt.Sprintf("token endpoint returned HTTP %d", status)
}
