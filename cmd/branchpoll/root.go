package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/branchpoll/internal/cli"
	"github.com/aretw0/branchpoll/internal/compiler"
	"github.com/aretw0/branchpoll/internal/config"
	"github.com/aretw0/branchpoll/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "branchpoll",
	Short: "branchpoll runs branching polls authored as indented text",
	Long: `branchpoll compiles polls written as indented text into a question tree,
walks respondents through it one answer at a time and tallies every answer.

Questions end with '?'. Answers of the root question share its indentation;
answers of a nested question sit at its level or one level deeper, and a
question placed under an answer becomes that answer's follow-up.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("dir", "", "Data directory (overrides data_dir)")
	rootCmd.PersistentFlags().String("backend", "", "Storage backend: memory, file, sqlite or redis")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig layers the persistent flags over file and environment settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("dir")
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend, _ = cmd.Flags().GetString("backend")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger falls back to info text logging; loadConfig already validated cfg.
func newLogger(cfg *config.Config) *slog.Logger {
	logger, err := cli.NewLogger(cfg.Log)
	if err != nil {
		return logging.New(slog.LevelInfo)
	}
	return logger
}

// readStructure returns the poll text named by --example, a file argument,
// or stdin when the argument is "-".
func readStructure(cmd *cobra.Command, args []string) (string, error) {
	if name, _ := cmd.Flags().GetString("example"); name != "" {
		ex, ok := compiler.LookupExample(name)
		if !ok {
			return "", fmt.Errorf("unknown example %q (available: %s)", name, exampleNames())
		}
		return ex.Text, nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("a structure file (or - for stdin) or --example is required")
	}

	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("failed to read structure: %w", err)
	}
	return string(data), nil
}

func exampleNames() string {
	var names []string
	for _, ex := range compiler.Examples() {
		names = append(names, ex.Name)
	}
	return strings.Join(names, ", ")
}
