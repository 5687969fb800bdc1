package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/domain/booking"
	"github.com/example/court-scheduler/internal/notify"
	"github.com/example/court-scheduler/internal/orchestrator"
	"github.com/example/court-scheduler/internal/report"
	"github.com/example/court-scheduler/internal/runs"
)

type runFlags struct {
	dryRun bool
	soon   bool
	record bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "go through every phase but never submit")
	cmd.Flags().BoolVar(&f.soon, "soon", false, "rehearse against a window that opens one minute from now")
	cmd.Flags().BoolVar(&f.record, "record", os.Getenv("DATABASE_URL") != "", "store the result in the database")
}

func newBookCmd(g *globalFlags) *cobra.Command {
	var f runFlags
	var slotHour string
	var count int

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Allocate courts, prepare every target and submit the moment booking opens",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			rf, err := e.loadRun()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("slot-hour") {
				if rf.Run.Slot, err = booking.ParseSlotHour(slotHour); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("count") {
				rf.Run.DesiredCount = count
			}
			if err := rf.Run.Validate(); err != nil {
				return err
			}
			return e.execute(cmd, rf, f, func(ctx context.Context, o *orchestrator.Orchestrator) booking.Result {
				return o.Run(ctx)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&slotHour, "slot-hour", "", "override the slot hour (0-23 or auto)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "override the number of slots to book")
	return cmd
}

func newConfirmCmd(g *globalFlags) *cobra.Command {
	var f runFlags
	var targets int

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Submit on targets already prepared by hand, the moment booking opens",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			rf, err := e.loadRun()
			if err != nil {
				return err
			}
			return e.execute(cmd, rf, f, func(ctx context.Context, o *orchestrator.Orchestrator) booking.Result {
				return o.Confirm(ctx, targets)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().IntVarP(&targets, "targets", "n", 1, "number of prepared targets")
	return cmd
}

// execute runs one orchestration in the foreground. Interrupting it cancels
// the wait and still releases every target.
func (e env) execute(cmd *cobra.Command, rf config.RunFile, f runFlags, do func(context.Context, *orchestrator.Orchestrator) booking.Result) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := append([]orchestrator.Option{orchestrator.WithLogger(e.log)}, e.runOpts...)
	if f.soon {
		opts = append(opts, orchestrator.WithWindow(booking.SoonWindow(clock.RealClock{}.Now().In(rf.Run.Location))))
	}
	o := orchestrator.New(rf.Run, buildDirectory(rf.Directory), buildController(rf.Controller, f.dryRun, e.log), opts...)

	sink, closeSinks := e.buildSinks(ctx, nil)
	defer closeSinks()

	res := do(ctx, o)

	notify.Publish(ctx, e.log, sink, res)
	if f.record {
		e.record(ctx, rf.Run.ResourceGroup, res)
	}

	report.Summary(cmd.OutOrStdout(), res)
	if code := report.ExitCode(res.Status()); code != report.ExitOK {
		return exitError{code: code}
	}
	return nil
}

func (e env) record(ctx context.Context, group string, res booking.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	d, err := e.openDB(ctx)
	if err != nil {
		e.log.Warn("result not recorded", "err", err)
		return
	}
	defer d.Close()
	if err := runs.NewRepo(d).Save(ctx, group, res); err != nil {
		e.log.Warn("result not recorded", "run_id", res.RunID, "err", err)
	}
}
