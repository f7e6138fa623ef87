// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})

	// Local development keeps secrets in a .env file. Missing is fine.
	_ = godotenv.Load()
}

var rootCmd = &cobra.Command{
	Use:   "quiosk",
	Short: "Quiosk store locator backend",
	Long: `
quiosk serves and maintains the Quiosk vending-machine location set: it
imports partner feeds, geocodes Dutch addresses and exposes the servable
locations to the store finder.
`,
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
