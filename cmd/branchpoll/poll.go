package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/aretw0/branchpoll/internal/cli"
	"github.com/aretw0/branchpoll/internal/presentation/report"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Manage stored polls",
}

// withStack opens the configured engine for the duration of fn.
func withStack(cmd *cobra.Command, fn func(*cli.Stack) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stack, err := cli.OpenEngine(cfg, newLogger(cfg), domain.LifecycleHooks{})
	if err != nil {
		return err
	}
	runErr := fn(stack)
	if err := stack.Close(cmd.Context()); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func parsePollID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid poll id %q", s)
	}
	return id, nil
}

var pollCreateCmd = &cobra.Command{
	Use:   "create [file|-]",
	Short: "Compile and store a new poll",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readStructure(cmd, args)
		if err != nil {
			return err
		}
		owner, _ := cmd.Flags().GetInt64("owner")
		name, _ := cmd.Flags().GetString("name")

		return withStack(cmd, func(stack *cli.Stack) error {
			poll, err := stack.Engine.CreatePoll(cmd.Context(), owner, name, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created poll %d %q with %d question(s)\n", poll.ID, poll.Name, poll.Len())
			return nil
		})
	},
}

var pollListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List the polls of an owner",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetInt64("owner")
		return withStack(cmd, func(stack *cli.Stack) error {
			polls, err := stack.Engine.ListPolls(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if len(polls) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No polls.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tQUESTIONS\tCREATED")
			for _, p := range polls {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", p.ID, p.Name, p.Len(), humanize.Time(p.CreatedAt))
			}
			return tw.Flush()
		})
	},
}

var pollRemoveCmd = &cobra.Command{
	Use:     "rm <poll-id>",
	Aliases: []string{"delete"},
	Short:   "Delete a poll with its tallies and sessions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePollID(args[0])
		if err != nil {
			return err
		}
		owner, _ := cmd.Flags().GetInt64("owner")
		return withStack(cmd, func(stack *cli.Stack) error {
			if err := stack.Engine.DeletePoll(cmd.Context(), owner, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted poll %d\n", id)
			return nil
		})
	},
}

var pollReportCmd = &cobra.Command{
	Use:   "report <poll-id>",
	Short: "Print the answer tally of a poll",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePollID(args[0])
		if err != nil {
			return err
		}
		markdown, _ := cmd.Flags().GetBool("markdown")
		return withStack(cmd, func(stack *cli.Stack) error {
			rep, err := stack.Engine.Report(cmd.Context(), id)
			if err != nil {
				return err
			}
			if markdown {
				_, err = fmt.Fprint(cmd.OutOrStdout(), report.Markdown(rep))
				return err
			}
			return report.WriteText(cmd.OutOrStdout(), rep)
		})
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.AddCommand(pollCreateCmd, pollListCmd, pollRemoveCmd, pollReportCmd)

	for _, c := range []*cobra.Command{pollCreateCmd, pollListCmd, pollRemoveCmd} {
		c.Flags().Int64("owner", 0, "Owner id of the poll administrator")
	}
	pollCreateCmd.Flags().String("name", "", "Poll name")
	pollCreateCmd.Flags().String("example", "", "Store a built-in example instead of a file")
	_ = pollCreateCmd.MarkFlagRequired("name")
	pollReportCmd.Flags().Bool("markdown", false, "Print the report as markdown")
}
