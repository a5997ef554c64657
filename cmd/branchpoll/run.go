package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/aretw0/branchpoll/internal/cli"
	"github.com/aretw0/branchpoll/internal/config"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [poll-id]",
	Short: "Answer a poll interactively",
	Long: `Walks one respondent through a stored poll, or through a throwaway poll
compiled from --file or --example. Reply with the option number or its text;
type "quit" to leave.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := cli.RunOptions{}
		opts.Respondent, _ = cmd.Flags().GetString("respondent")
		opts.Quiet, _ = cmd.Flags().GetBool("quiet")
		opts.ShowResults, _ = cmd.Flags().GetBool("results")

		file, _ := cmd.Flags().GetString("file")
		example, _ := cmd.Flags().GetString("example")
		switch {
		case file != "" || example != "":
			var structArgs []string
			if file != "" {
				structArgs = []string{file}
			}
			opts.Structure, err = readStructure(cmd, structArgs)
			if err != nil {
				return err
			}
			// Ad-hoc polls are never persisted.
			cfg.Backend = config.BackendMemory
		case len(args) == 1:
			opts.PollID, err = strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid poll id %q", args[0])
			}
		default:
			return fmt.Errorf("a poll id, --file or --example is required")
		}

		logger := newLogger(cfg)
		stack, err := cli.OpenEngine(cfg, logger, domain.LifecycleHooks{})
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		runErr := cli.Run(ctx, stack, opts, os.Stdin, cmd.OutOrStdout(), logger)
		if sig := ctx.Signal(); sig != nil {
			logger.Debug("run interrupted", "signal", sig.String())
		}
		if err := stack.Close(cmd.Context()); err != nil && runErr == nil {
			return err
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("file", "f", "", "Run a throwaway poll compiled from this structure file")
	runCmd.Flags().String("example", "", "Run a throwaway poll from a built-in example")
	runCmd.Flags().StringP("respondent", "r", defaultRespondent(), "Respondent id")
	runCmd.Flags().Bool("results", false, "Print the poll results after finishing")
	runCmd.Flags().BoolP("quiet", "q", false, "Suppress the banner and system messages")
}

func defaultRespondent() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "anonymous"
}
