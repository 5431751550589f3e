package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ordermesh/tokengate/internal/rotation"
)

// NewCheckCommand creates the check command: load and validate the full
// configuration without starting the server.
func NewCheckCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and providers file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, providers, err := rt.loadConfig()
			if err != nil {
				return err
			}

			fmt.Printf("configuration OK (%s)\n", cfg.ProvidersFile)
			for _, p := range providers {
				c := p.Config
				fmt.Printf("  provider %s\n", c.Name)
				fmt.Printf("    token endpoint:  %s %s\n", c.Method, c.TokenURL)
				fmt.Printf("    rotation:        enabled=%v interval=%s\n",
					c.RotationEnabled, c.Interval(rotation.DefaultRotationInterval))
				if c.SecretRotation.Enabled {
					fmt.Printf("    secret rotation: interval=%s validity=%s\n",
						c.SecretRotation.Interval, c.SecretRotation.Validity)
				}
				if p.InitialRefreshToken == "" && c.NeedsRefreshToken() {
					fmt.Printf("    warning: body template needs a refresh token but none is seeded\n")
				}
			}
			return nil
		},
	}
}
