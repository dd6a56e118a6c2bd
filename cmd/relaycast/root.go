/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/example/relaycast/internal/config"
	"github.com/example/relaycast/internal/logging"
)

// relayVersion is reported to the tracing resource.
const relayVersion = "0.1.0"

var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "relaycast",
	Short: "Live audio broadcast relay",
}

// loadConfig populates the package-level cfg and logger from the environment.
// Every subcommand calls this first, mirroring how the original station tool
// wired config loading ahead of any operation.
func loadConfig() error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	cfg = c
	logger = logging.Setup(cfg.Environment)
	for _, warning := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warning)
	}
	return nil
}
