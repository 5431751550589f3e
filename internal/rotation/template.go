package rotation

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/ordermesh/tokengate/internal/errors"
)

// TokenTemplateContext is the closed set of placeholders available to a
// provider's token request body template. Anything else fails validation at
// config load time rather than at request time.
type TokenTemplateContext struct {
	RefreshToken string
	ClientID     string
	ClientSecret string
	Extra        map[string]string
}

// SecretTemplateContext is the closed placeholder set for the secret
// rotation body template.
type SecretTemplateContext struct {
	DisplayName  string
	Expiry       string
	ClientID     string
	ClientSecret string
}

func render(name, text string, ctx interface{}) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return buf.String(), nil
}

// RenderTokenBody substitutes the token exchange placeholders.
func RenderTokenBody(p *ProviderConfig, refreshToken, clientSecret string) (string, error) {
	return render("token_body", p.BodyTemplate, TokenTemplateContext{
		RefreshToken: refreshToken,
		ClientID:     p.ClientID,
		ClientSecret: clientSecret,
		Extra:        p.Extra,
	})
}

// RenderSecretBody substitutes the secret rotation placeholders.
func RenderSecretBody(p *ProviderConfig, expiry, clientSecret string) (string, error) {
	return render("secret_body", p.SecretRotation.BodyTemplate, SecretTemplateContext{
		DisplayName:  p.SecretRotation.DisplayName,
		Expiry:       expiry,
		ClientID:     p.ClientID,
		ClientSecret: clientSecret,
	})
}

// ValidateTemplates renders both body templates against fully populated
// contexts so unknown placeholders are rejected when the configuration is
// loaded, not when a rotation is already underway.
func ValidateTemplates(p *ProviderConfig) error {
	if p.BodyTemplate == "" {
		return errors.ConfigError{
			Field:   fmt.Sprintf("providers.%s.bodyTemplate", p.Name),
			Message: "token body template is required",
		}
	}
	if _, err := RenderTokenBody(p, "probe", "probe"); err != nil {
		return errors.ConfigError{
			Field:      fmt.Sprintf("providers.%s.bodyTemplate", p.Name),
			Message:    err.Error(),
			Suggestion: "allowed placeholders: .RefreshToken .ClientID .ClientSecret .Extra.<key>",
		}
	}
	if p.SecretRotation.Enabled {
		if _, err := RenderSecretBody(p, "probe", "probe"); err != nil {
			return errors.ConfigError{
				Field:      fmt.Sprintf("providers.%s.secretRotation.bodyTemplate", p.Name),
				Message:    err.Error(),
				Suggestion: "allowed placeholders: .DisplayName .Expiry .ClientID .ClientSecret",
			}
		}
	}
	return nil
}
