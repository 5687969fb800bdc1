package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/controller"
	"github.com/example/court-scheduler/internal/directory"
	"github.com/example/court-scheduler/internal/domain/booking"
	"github.com/example/court-scheduler/internal/notify"
	"github.com/example/court-scheduler/internal/orchestrator"
	"github.com/example/court-scheduler/internal/plans"
	"github.com/example/court-scheduler/internal/runs"
	"github.com/example/court-scheduler/internal/scheduler"
	"github.com/example/court-scheduler/internal/web"
)

func newServerCmd(g *globalFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the dashboard and the plan scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			if err := e.cfg.RequireSessionKeys(); err != nil {
				return err
			}
			rf, err := e.loadRun()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := e.openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			runRepo := runs.NewRepo(d)
			planRepo := plans.NewRepo(d)
			dir := buildDirectory(rf.Directory)
			ctl := controller.NewSerial(buildController(rf.Controller, dryRun, e.log))

			metrics := notify.NewMetrics()
			sink, closeSinks := e.buildSinks(ctx, metrics)
			defer closeSinks()

			sched := &scheduler.Scheduler{
				Store:    planRepo,
				Interval: e.cfg.PollInterval,
				Logger:   e.log,
				Execute: func(ctx context.Context, p plans.Plan) booking.Result {
					cfg := p.Apply(rf.Run)
					if err := cfg.Validate(); err != nil {
						now := time.Now()
						return booking.Result{RunID: uuid.NewString(), Mode: cfg.Mode, StartedAt: now, FinishedAt: now, Err: err}
					}
					res := orchestrator.New(cfg, dir, ctl, orchestrator.WithLogger(e.log)).Run(ctx)
					notify.Publish(ctx, e.log, sink, res)

					saveCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
					defer done()
					if err := runRepo.Save(saveCtx, cfg.ResourceGroup, res); err != nil {
						e.log.Warn("result not recorded", "run_id", res.RunID, "err", err)
						// plans.last_run_id must reference a stored run
						res.RunID = ""
					}
					return res
				},
			}

			ws := &web.Server{
				Auth:      auth.NewStore(auth.NewDBUsers(d), e.cfg.CookieHashKey, e.cfg.CookieBlockKey),
				Runs:      runRepo,
				Plans:     planRepo,
				Directory: directory.NewCached(dir, rf.Directory.CacheTTL),
				Run:       rf.Run,
				Metrics:   metrics.Handler(),
				Logger:    e.log,
			}

			grp, gctx := errgroup.WithContext(ctx)
			grp.Go(func() error {
				if err := sched.Run(gctx); err != nil && gctx.Err() == nil {
					return fmt.Errorf("scheduler: %w", err)
				}
				return nil
			})
			grp.Go(func() error {
				return web.Start(gctx, e.cfg.ListenAddr, ws.Routes(), e.log)
			})
			return grp.Wait()
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "never submit; every planned run is a rehearsal")
	return cmd
}
