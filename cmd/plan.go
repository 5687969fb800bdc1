package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/example/court-scheduler/internal/domain/booking"
	"github.com/example/court-scheduler/internal/plans"
)

func newPlanCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage runs scheduled for the server",
	}
	cmd.AddCommand(newPlanCreateCmd(g), newPlanListCmd(g))
	return cmd
}

func newPlanCreateCmd(g *globalFlags) *cobra.Command {
	var (
		name     string
		slotHour string
		count    int
		startAt  string
		lead     time.Duration
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Schedule a booking run",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			rf, err := e.loadRun()
			if err != nil {
				return err
			}

			slot, err := booking.ParseSlotHour(slotHour)
			if err != nil {
				return err
			}
			p := plans.Plan{Name: name, DesiredCount: count}
			if !slot.Auto {
				h := slot.Hour
				p.SlotHour = &h
			}
			switch {
			case startAt != "":
				if p.StartAt, err = time.ParseInLocation("2006-01-02T15:04", startAt, rf.Run.Location); err != nil {
					return fmt.Errorf("--start-at: %w", err)
				}
			case !slot.Auto:
				p.StartAt = plans.StartFor(slot.Hour, lead, clock.RealClock{}.Now().In(rf.Run.Location))
			default:
				return fmt.Errorf("--start-at is required with an auto slot hour")
			}
			if err := p.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			d, err := e.openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			id, err := plans.NewRepo(d).Create(ctx, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created plan %d %q starting %s\n", id, p.Name, p.StartAt.Format(time.RFC3339))
			return nil
		},
	}

	c.Flags().StringVar(&name, "name", "", "plan name")
	c.Flags().StringVar(&slotHour, "slot-hour", "auto", "slot hour (0-23 or auto)")
	c.Flags().IntVarP(&count, "count", "n", 1, "number of slots to book")
	c.Flags().StringVar(&startAt, "start-at", "", "start time, e.g. 2026-10-18T06:50 (run config timezone)")
	c.Flags().DurationVar(&lead, "lead", 10*time.Minute, "start this long before booking opens when --start-at is not given")
	_ = c.MarkFlagRequired("name")
	return c
}

func newPlanListCmd(g *globalFlags) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "list",
		Short: "List scheduled runs",
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

			ps, err := plans.NewRepo(d).List(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSLOT\tCOUNT\tSTART\tSTATUS\tLAST RUN")
			for _, p := range ps {
				slot := "auto"
				if p.SlotHour != nil {
					slot = fmt.Sprintf("%02d:00", *p.SlotHour)
				}
				last := ""
				if p.LastRunID != nil {
					last = *p.LastRunID
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n", p.ID, p.Name, slot, p.DesiredCount,
					p.StartAt.Format("2006-01-02 15:04"), p.Status, last)
			}
			return tw.Flush()
		},
	}
	c.Flags().IntVar(&limit, "limit", 50, "maximum plans to show")
	return c
}
