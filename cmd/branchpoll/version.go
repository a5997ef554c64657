package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/branchpoll"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of branchpoll",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "branchpoll version %s\n", strings.TrimSpace(branchpoll.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
