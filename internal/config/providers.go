package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ordermesh/tokengate/internal/errors"
	"github.com/ordermesh/tokengate/internal/rotation"
	"github.com/ordermesh/tokengate/internal/secure"
)

// Provider couples a rotation.ProviderConfig with the store seed values
// that belong to it.
type Provider struct {
	Config              *rotation.ProviderConfig
	InitialRefreshToken string
	UserTokenValidity   time.Duration
}

// providersFile is the yaml shape of the providers file. Secrets are never
// written into the file itself; the *Env fields name the environment
// variables that carry them.
type providersFile struct {
	Providers []providerEntry `yaml:"providers" json:"providers"`
}

type providerEntry struct {
	Name         string            `yaml:"name" json:"name"`
	TokenURL     string            `yaml:"tokenUrl" json:"tokenUrl"`
	Method       string            `yaml:"method,omitempty" json:"method,omitempty"`
	ContentType  string            `yaml:"contentType,omitempty" json:"contentType,omitempty"`
	BodyTemplate string            `yaml:"bodyTemplate" json:"bodyTemplate"`
	AccessField  string            `yaml:"accessField,omitempty" json:"accessField,omitempty"`
	RefreshField string            `yaml:"refreshField,omitempty" json:"refreshField,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Extra        map[string]string `yaml:"extra,omitempty" json:"extra,omitempty"`

	Rotation struct {
		Enabled  bool   `yaml:"enabled" json:"enabled"`
		Interval string `yaml:"interval,omitempty" json:"interval,omitempty"`
	} `yaml:"rotation" json:"rotation"`

	ClientID               string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	ClientSecretEnv        string `yaml:"clientSecretEnv,omitempty" json:"clientSecretEnv,omitempty"`
	InitialRefreshTokenEnv string `yaml:"initialRefreshTokenEnv,omitempty" json:"initialRefreshTokenEnv,omitempty"`
	UserTokenValidity      string `yaml:"userTokenValidity,omitempty" json:"userTokenValidity,omitempty"`

	SecretRotation *struct {
		Enabled       bool   `yaml:"enabled" json:"enabled"`
		Interval      string `yaml:"interval,omitempty" json:"interval,omitempty"`
		Validity      string `yaml:"validity,omitempty" json:"validity,omitempty"`
		URL           string `yaml:"url" json:"url"`
		BodyTemplate  string `yaml:"bodyTemplate" json:"bodyTemplate"`
		ResponseField string `yaml:"responseField" json:"responseField"`
		ApplicationID string `yaml:"applicationId,omitempty" json:"applicationId,omitempty"`
		DisplayName   string `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	} `yaml:"secretRotation,omitempty" json:"secretRotation,omitempty"`
}

// providersSchema is the JSON schema the providers file must satisfy
// before any entry is interpreted.
const providersSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["providers"],
  "properties": {
    "providers": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "tokenUrl", "bodyTemplate"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "tokenUrl": {"type": "string", "minLength": 1},
          "method": {"type": "string", "enum": ["GET", "POST", "PUT"]},
          "contentType": {"type": "string"},
          "bodyTemplate": {"type": "string", "minLength": 1},
          "accessField": {"type": "string"},
          "refreshField": {"type": "string"},
          "headers": {"type": "object", "additionalProperties": {"type": "string"}},
          "extra": {"type": "object", "additionalProperties": {"type": "string"}},
          "rotation": {
            "type": "object",
            "properties": {
              "enabled": {"type": "boolean"},
              "interval": {"type": "string"}
            }
          },
          "clientId": {"type": "string"},
          "clientSecretEnv": {"type": "string"},
          "initialRefreshTokenEnv": {"type": "string"},
          "userTokenValidity": {"type": "string"},
          "secretRotation": {
            "type": "object",
            "required": ["url", "bodyTemplate", "responseField"],
            "properties": {
              "enabled": {"type": "boolean"},
              "interval": {"type": "string"},
              "validity": {"type": "string"},
              "url": {"type": "string", "minLength": 1},
              "bodyTemplate": {"type": "string", "minLength": 1},
              "responseField": {"type": "string", "minLength": 1},
              "applicationId": {"type": "string"},
              "displayName": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

// LoadProviders reads, validates, and materializes the providers file.
// Secrets named by *Env fields are resolved from the environment; body
// templates are probe-rendered so unknown placeholders fail here instead
// of during the first rotation.
func LoadProviders(path string) ([]Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file %s: %w", path, err)
	}
	return ParseProviders(data)
}

// ParseProviders is LoadProviders for in-memory yaml. Exposed for tests.
func ParseProviders(data []byte) ([]Provider, error) {
	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}
	if err := validateSchema(&file); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(file.Providers))
	providers := make([]Provider, 0, len(file.Providers))
	for _, entry := range file.Providers {
		// Provider names are case-insensitive everywhere downstream.
		entry.Name = strings.ToLower(entry.Name)
		if _, dup := seen[entry.Name]; dup {
			return nil, errors.ConfigError{
				Field:   "providers",
				Value:   entry.Name,
				Message: "duplicate provider name",
			}
		}
		seen[entry.Name] = struct{}{}

		provider, err := materialize(entry)
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

func validateSchema(file *providersFile) error {
	doc, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal providers for validation: %w", err)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(providersSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("providers file is invalid:\n  - %s", strings.Join(msgs, "\n  - "))
	}
	return nil
}

func materialize(entry providerEntry) (Provider, error) {
	cfg := &rotation.ProviderConfig{
		Name:            entry.Name,
		TokenURL:        entry.TokenURL,
		Method:          defaultString(entry.Method, "POST"),
		ContentType:     defaultString(entry.ContentType, "application/x-www-form-urlencoded"),
		BodyTemplate:    entry.BodyTemplate,
		AccessField:     defaultString(entry.AccessField, "access_token"),
		RefreshField:    defaultString(entry.RefreshField, "refresh_token"),
		RotationEnabled: entry.Rotation.Enabled,
		Headers:         entry.Headers,
		Extra:           entry.Extra,
		ClientID:        entry.ClientID,
	}

	var err error
	if cfg.RotationInterval, err = optionalDuration(entry.Name, "rotation.interval", entry.Rotation.Interval); err != nil {
		return Provider{}, err
	}

	if entry.ClientSecretEnv != "" {
		secret, ok := os.LookupEnv(entry.ClientSecretEnv)
		if !ok {
			return Provider{}, errors.ConfigError{
				Field:      entry.Name + ".clientSecretEnv",
				Value:      entry.ClientSecretEnv,
				Message:    "environment variable is not set",
				Suggestion: "export " + entry.ClientSecretEnv + " before starting the server",
			}
		}
		cfg.ClientSecret = secure.NewBuffer(secret)
	} else {
		cfg.ClientSecret = secure.NewBuffer("")
	}

	if sr := entry.SecretRotation; sr != nil {
		cfg.SecretRotation = rotation.SecretRotationConfig{
			Enabled:       sr.Enabled,
			URL:           sr.URL,
			BodyTemplate:  sr.BodyTemplate,
			ResponseField: sr.ResponseField,
			ApplicationID: sr.ApplicationID,
			DisplayName:   defaultString(sr.DisplayName, entry.Name),
		}
		if cfg.SecretRotation.Interval, err = optionalDuration(entry.Name, "secretRotation.interval", sr.Interval); err != nil {
			return Provider{}, err
		}
		if cfg.SecretRotation.Validity, err = optionalDuration(entry.Name, "secretRotation.validity", sr.Validity); err != nil {
			return Provider{}, err
		}
	}

	if err := rotation.ValidateTemplates(cfg); err != nil {
		return Provider{}, err
	}

	provider := Provider{Config: cfg}
	if provider.UserTokenValidity, err = durationOrDefault(entry.Name, "userTokenValidity", entry.UserTokenValidity, rotation.DefaultUserTokenValidity); err != nil {
		return Provider{}, err
	}
	if entry.InitialRefreshTokenEnv != "" {
		provider.InitialRefreshToken = os.Getenv(entry.InitialRefreshTokenEnv)
	}
	return provider, nil
}

func defaultString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func optionalDuration(provider, field, raw string) (time.Duration, error) {
	return durationOrDefault(provider, field, raw, 0)
}

func durationOrDefault(provider, field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.ConfigError{
			Field:      provider + "." + field,
			Value:      raw,
			Message:    "invalid duration",
			Suggestion: `use Go duration syntax, e.g. "5m" or "24h"`,
		}
	}
	return d, nil
}
