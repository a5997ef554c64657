package main

import (
	"fmt"

	"github.com/aretw0/branchpoll/internal/compiler"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|-]",
	Short: "Check a poll structure for errors",
	Long: `Compiles a poll structure and reports the first error with its line number.
With --format the canonical indentation of the structure is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if list, _ := cmd.Flags().GetBool("list-examples"); list {
			for _, ex := range compiler.Examples() {
				fmt.Fprintf(out, "# %s\n%s\n", ex.Name, ex.Text)
			}
			return nil
		}

		text, err := readStructure(cmd, args)
		if err != nil {
			return err
		}
		unit, _ := cmd.Flags().GetInt("indent")
		g, err := compiler.NewParser(compiler.WithIndentUnit(unit)).Parse(text)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		if format, _ := cmd.Flags().GetBool("format"); format {
			fmt.Fprint(out, compiler.FormatIndent(g, unit))
			return nil
		}
		fmt.Fprintf(out, "Structure is valid! ✅ %d question(s)\n", g.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("example", "", "Validate a built-in example instead of a file")
	validateCmd.Flags().Bool("list-examples", false, "Print the built-in examples")
	validateCmd.Flags().Bool("format", false, "Print the structure in canonical form")
	validateCmd.Flags().Int("indent", compiler.DefaultIndentUnit, "Spaces per indentation level")
}
