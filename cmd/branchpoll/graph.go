package main

import (
	"fmt"

	"github.com/aretw0/branchpoll/internal/compiler"
	"github.com/aretw0/branchpoll/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [file|-]",
	Short: "Export the poll question tree",
	Long:  `Compiles a poll structure and outputs a Mermaid diagram (graph TD) of its questions and answers.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readStructure(cmd, args)
		if err != nil {
			return err
		}
		g, err := compiler.Compile(text)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("example", "", "Draw a built-in example instead of a file")
}
