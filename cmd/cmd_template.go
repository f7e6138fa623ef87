// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quiosk/locator/server"
)

var exportTemplateCmd = &cobra.Command{
	Use:   "export-template [file]",
	Short: "Write the sample import CSV to a file or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Print(server.ImportTemplateCSV)

			return nil
		}

		if err := os.WriteFile(args[0], []byte(server.ImportTemplateCSV), 0600); err != nil {
			return fmt.Errorf("writing template: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportTemplateCmd)
}
