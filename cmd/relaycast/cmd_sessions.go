/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/relaycast/internal/db"
	"github.com/example/relaycast/internal/history"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect past broadcast sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently ended sessions",
	RunE:  runSessionsList,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsListCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "maximum number of records to show")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := db.Connect(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close(database)

	var records []history.SessionRecord
	if err := database.Order("ended_at desc").Limit(sessionsLimit).Find(&records).Error; err != nil {
		return fmt.Errorf("query session history: %w", err)
	}

	fmt.Printf("%-10s %-24s %-10s %10s %10s %s\n", "SESSION", "ENDED AT", "REASON", "BYTES", "PEAK", "RECORDING")
	for _, r := range records {
		fmt.Printf("%-10s %-24s %-10s %10d %10d %s\n",
			r.SessionID, r.EndedAt.Format("2006-01-02T15:04:05Z"), r.Reason, r.BytesRecorded, r.PeakListeners, r.RecordingPath)
	}
	return nil
}
