// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nix-community/lanzaboote-go/internal/generation"
)

var listGenerationsCmd = &cobra.Command{
	Use:   "list-generations <generation-link>...",
	Short: "Describe the generation graph rooted at the given generation links",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runListGenerations,
}

func init() {
	rootCmd.AddCommand(listGenerationsCmd)
}

func runListGenerations(cmd *cobra.Command, args []string) error {
	generations, err := resolveGenerations(args)
	if err != nil {
		return newExitError(3, err)
	}

	for _, g := range generations {
		fmt.Fprintln(cmd.OutOrStdout(), g.Describe())
	}

	return nil
}
