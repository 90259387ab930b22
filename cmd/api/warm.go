package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"storefront/internal/config"

	"github.com/spf13/cobra"
)

func warmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Refresh every catalog collection once and print sync stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			app, err := newApplication(logger, cfg)
			if err != nil {
				return err
			}
			defer app.close()

			if app.gateway == nil {
				return errors.New("catalog records are not configured")
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(app.warmCatalog(cmd.Context()))
		},
	}
}
