// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cmd implements lzbt's command-line surface.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "lzbt",
	Short: "Manage signed Unified Kernel Images on an EFI System Partition",
	Long:  `lzbt installs, garbage-collects, and lists NixOS generations as Secure Boot signed Unified Kernel Images on one or more EFI System Partitions.`,
}

var logLevel string

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "one of debug, info, warn, error")
}

func newLogger() *slog.Logger {
	var level slog.Level

	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command and returns the process exit code: 0 on
// success, 1 on reconciliation failure, 2 on partial failure, 3 on invalid
// input, matching this system's fixed exit-code contract.
func Execute() int {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lzbt:", err)

		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}

		return 3
	}

	return 0
}

// exitError carries a specific exit code through cobra's RunE error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newExitError(code int, err error) error {
	if err == nil {
		return nil
	}

	return &exitError{code: code, err: err}
}
