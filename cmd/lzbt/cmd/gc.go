// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nix-community/lanzaboote-go/internal/esp"
	"github.com/nix-community/lanzaboote-go/internal/reconcile"
)

var gcCmd = &cobra.Command{
	Use:   "gc <esp-mount-point>...",
	Short: "Remove detached kernel/initrd artefacts no installed UKI references",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGC,
}

func init() {
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	engine := reconcile.NewEngine(reconcile.Config{Logger: newLogger()})

	for _, mountPoint := range args {
		result, err := engine.GC(esp.NewPaths(mountPoint))
		if err != nil {
			return newExitError(1, fmt.Errorf("gc %s: %w", mountPoint, err))
		}

		for _, name := range result.Removed {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	}

	return nil
}
