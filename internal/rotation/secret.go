package rotation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ordermesh/tokengate/internal/errors"
	"github.com/ordermesh/tokengate/internal/logging"
	"github.com/ordermesh/tokengate/internal/telemetry"
)

// SecretEngine rotates a provider's client secret on its own cycle,
// independent of the access token exchange. The new secret replaces the old
// one in the provider's sealed buffer, so the next token rotation
// authenticates with it.
type SecretEngine struct {
	store  *Store
	engine *Engine
	client *http.Client
	logger *logging.Logger
}

// NewSecretEngine creates a secret rotation engine sharing the credential
// store with the token engine.
func NewSecretEngine(store *Store, engine *Engine, logger *logging.Logger) *SecretEngine {
	return &SecretEngine{
		store:  store,
		engine: engine,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// NewSecretEngineWithClient creates a secret engine with a custom HTTP
// client. Used in tests.
func NewSecretEngineWithClient(store *Store, engine *Engine, client *http.Client, logger *logging.Logger) *SecretEngine {
	return &SecretEngine{store: store, engine: engine, client: client, logger: logger}
}

// RotateSecret asks the provider for a fresh client secret. Providers
// without secret rotation configured are an immediate no-op. A live access
// token is required to authenticate the call; one token rotation is
// attempted first when none is held.
func (e *SecretEngine) RotateSecret(ctx context.Context, cfg *ProviderConfig) error {
	if !cfg.SecretRotation.Enabled {
		return nil
	}

	accessToken, ok := e.store.AccessToken(cfg.Name)
	if !ok {
		return errors.Rotation(errors.CodeInvalidTokenName, cfg.Name, "unknown provider")
	}
	if accessToken == "" {
		if err := e.engine.Rotate(ctx, cfg); err != nil {
			e.fail(cfg.Name, "no access token and rotation failed")
			return err
		}
		accessToken, _ = e.store.AccessToken(cfg.Name)
		if accessToken == "" {
			err := errors.Rotation(errors.CodeTokenRotationFailed, cfg.Name,
				"secret rotation requires an access token")
			e.fail(cfg.Name, err.Error())
			return err
		}
	}

	// Integer-second UTC instant; the provider rejects sub-second precision.
	expiry := time.Now().UTC().Add(cfg.SecretRotation.Validity).Truncate(time.Second).Format(time.RFC3339)

	secret, err := cfg.ClientSecret.Reveal()
	if err != nil {
		rerr := &errors.RotationError{Code: errors.CodeTokenRotationFailed, Provider: cfg.Name, Err: err}
		e.fail(cfg.Name, rerr.Error())
		return rerr
	}

	body, err := RenderSecretBody(cfg, expiry, secret)
	if err != nil {
		rerr := &errors.RotationError{
			Code:     errors.CodeTokenRotationFailed,
			Provider: cfg.Name,
			Message:  "secret body rendering failed",
			Err:      err,
		}
		e.fail(cfg.Name, rerr.Error())
		return rerr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.SecretRotation.URL, strings.NewReader(body))
	if err != nil {
		rerr := &errors.RotationError{Code: errors.CodeTokenRotationFailed, Provider: cfg.Name, Err: err}
		e.fail(cfg.Name, rerr.Error())
		return rerr
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("ApplicationId", cfg.SecretRotation.ApplicationID)

	resp, err := e.client.Do(req)
	if err != nil {
		rerr := &errors.RotationError{
			Code:     errors.CodeTokenRotationFailed,
			Provider: cfg.Name,
			Message:  "secret rotation endpoint unreachable",
			Err:      err,
		}
		e.fail(cfg.Name, rerr.Error())
		return rerr
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		rerr := &errors.RotationError{Code: errors.CodeTokenRotationFailed, Provider: cfg.Name, Err: err}
		e.fail(cfg.Name, rerr.Error())
		return rerr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rerr := errors.Rotation(errors.CodeTokenRotationFailed, cfg.Name,
			"%s", upstreamError(respBody, resp.StatusCode))
		e.fail(cfg.Name, rerr.Error())
		return rerr
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		rerr := errors.Rotation(errors.CodeTokenRotationFailed, cfg.Name,
			"secret rotation response is not JSON")
		e.fail(cfg.Name, rerr.Error())
		return rerr
	}

	newSecret, _ := parsed[cfg.SecretRotation.ResponseField].(string)
	if newSecret == "" {
		rerr := errors.Rotation(errors.CodeTokenRotationFailed, cfg.Name,
			"secret rotation response missing %q field", cfg.SecretRotation.ResponseField)
		e.fail(cfg.Name, rerr.Error())
		return rerr
	}

	cfg.ClientSecret.Replace(newSecret)
	telemetry.SecretRotationsTotal.WithLabelValues(cfg.Name, "success").Inc()
	e.logger.Info("rotated client secret for provider %s, valid until %s", cfg.Name, expiry)
	e.logger.Debug("new secret for %s: %s", cfg.Name, logging.Secret(newSecret))
	return nil
}

func (e *SecretEngine) fail(provider, msg string) {
	telemetry.SecretRotationsTotal.WithLabelValues(provider, "failure").Inc()
	e.logger.Error("client secret rotation failed for %s: %s", provider, msg)
}
