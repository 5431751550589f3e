// Package commands holds the tokengate subcommands.
package commands

import (
	"github.com/joho/godotenv"

	"github.com/ordermesh/tokengate/internal/config"
	"github.com/ordermesh/tokengate/internal/logging"
)

// Runtime carries the state the root command resolves from its persistent
// flags before any subcommand runs.
type Runtime struct {
	Logger  *logging.Logger
	EnvFile string
}

// loadConfig reads the env file (when present), the environment, and the
// providers file.
func (rt *Runtime) loadConfig() (*config.Config, []config.Provider, error) {
	if err := godotenv.Load(rt.EnvFile); err == nil {
		rt.Logger.Debug("loaded environment from %s", rt.EnvFile)
	}

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	providers, err := config.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, providers, nil
}
