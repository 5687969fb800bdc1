package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/runs"
)

func newRunsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}
	cmd.AddCommand(newRunsListCmd(g), newRunsShowCmd(g))
	return cmd
}

func newRunsListCmd(g *globalFlags) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			d, err := e.openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			rs, err := runs.NewRepo(d).List(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tGROUP\tMODE\tSLOT\tSTATUS")
			for _, r := range rs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%02d:00\t%s\n", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"),
					r.ResourceGroup, r.Mode, r.SlotHour, r.Status)
			}
			return tw.Flush()
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")
	return c
}

func newRunsShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run and its per-target outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			d, err := e.openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			r, err := runs.NewRepo(d).Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s  %s  %s  status=%s\n", r.ID, r.ResourceGroup, r.Mode, r.Status)
			if r.Error != nil {
				fmt.Fprintf(out, "error: %s\n", *r.Error)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tCOURT\tHOUR\tTARGET\tOUTCOME\tDETAIL")
			for _, en := range r.Entries {
				fmt.Fprintf(tw, "%d\t%d\t%02d:00\t%s\t%s\t%s\n", en.Index, en.Court, en.SlotHour, en.TargetName, en.Outcome, en.Detail)
			}
			return tw.Flush()
		},
	}
}
