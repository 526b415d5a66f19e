package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"thoreinstein.com/chronicle/pkg/report"
	"thoreinstein.com/chronicle/pkg/store"
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List and show saved analysis runs",
	Long: `Every analyze run is saved to the run store unless --no-store is given.

Use these subcommands to list earlier runs and print their summaries again.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRunsListCommand(cmd.Context(), cmd.OutOrStdout())
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the summary of a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRunsShowCommand(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRunsDeleteCommand(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

var (
	runsLimit  int
	runsFormat string
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)

	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list (0 for all)")
	runsShowCmd.Flags().StringVarP(&runsFormat, "format", "f", "", "Output format: text, markdown, json, yaml")
}

func openRunStore(ctx context.Context) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	return store.Open(ctx, cfg.Store.Path)
}

func runRunsListCommand(ctx context.Context, out io.Writer) error {
	runs, err := openRunStore(ctx)
	if err != nil {
		return err
	}
	defer runs.Close()

	infos, err := runs.List(ctx, runsLimit)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No saved runs.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGENERATED\tSTATUS\tSOURCE\tEVENTS\tSESSIONS\tPATTERNS")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			info.ID,
			info.GeneratedAt.Local().Format("2006-01-02 15:04:05"),
			info.Status,
			info.Source,
			info.Events,
			info.Sessions,
			info.Patterns)
	}
	return tw.Flush()
}

func runRunsShowCommand(ctx context.Context, out io.Writer, id string) error {
	runs, err := openRunStore(ctx)
	if err != nil {
		return err
	}
	defer runs.Close()

	run, err := runs.Get(ctx, id)
	if err != nil {
		return err
	}

	format, err := report.ResolveFormat(runsFormat, isTerminal(out))
	if err != nil {
		return err
	}
	return report.Write(out, &run.Summary, format)
}

func runRunsDeleteCommand(ctx context.Context, out io.Writer, id string) error {
	runs, err := openRunStore(ctx)
	if err != nil {
		return err
	}
	defer runs.Close()

	if err := runs.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted run %s\n", id)
	return nil
}
