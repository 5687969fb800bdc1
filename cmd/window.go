package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/example/court-scheduler/internal/domain/booking"
)

func newWindowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "window",
		Short: "Show which slot a run started now would book, and when booking opens",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			rf, err := e.loadRun()
			if err != nil {
				return err
			}
			now := clock.RealClock{}.Now().In(rf.Run.Location)
			w, err := booking.ComputeWindow(rf.Run.Slot, now, rf.Run.CutoffMinute)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "slot:          %s\n", w.OpenAt.Format("Mon 02 Jan 2006 15:04 MST"))
			fmt.Fprintf(out, "booking opens: %s\n", w.OpeningInstant().Format("Mon 02 Jan 2006 15:04:05 MST"))
			if d := w.OpeningInstant().Sub(now); d > 0 {
				fmt.Fprintf(out, "opens in:      %s\n", d.Round(time.Second))
			} else {
				fmt.Fprintln(out, "opens in:      already open")
			}
			return nil
		},
	}
}
