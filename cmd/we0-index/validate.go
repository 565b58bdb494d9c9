package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/we0-dev/we0-index/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and exit",
	Long: `Load and validate the configuration without starting anything.

Exits non-zero when the file is missing, malformed, or the selected
platform's settings are incomplete. Useful as a deploy pre-flight.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Printf("configuration ok: platform=%s provider=%s model=%s\n",
		cfg.Vector.Platform, cfg.Vector.EmbeddingProvider, cfg.Vector.EmbeddingModel)
	return nil
}
