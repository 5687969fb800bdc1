package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/controller"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/directory"
	"github.com/example/court-scheduler/internal/domain/booking"
	"github.com/example/court-scheduler/internal/logger"
	"github.com/example/court-scheduler/internal/migrate"
	"github.com/example/court-scheduler/internal/notify"
	"github.com/example/court-scheduler/internal/orchestrator"
)

type env struct {
	cfg config.Config
	log *log.Logger

	// runOpts and sinks are added to every foreground run.
	runOpts []orchestrator.Option
	sinks   []notify.Sink
}

func loadEnv(g *globalFlags) (env, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return env{}, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.configPath != "" {
		cfg.BookingConfig = g.configPath
	}
	l, err := logger.New(logger.Config{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		return env{}, fmt.Errorf("logger: %w", err)
	}
	return env{cfg: cfg, log: l}, nil
}

func (e env) loadRun() (config.RunFile, error) {
	rf, err := config.LoadRun(e.cfg.BookingConfig)
	if err != nil {
		return config.RunFile{}, err
	}
	e.log.Debug("run config loaded", "path", e.cfg.BookingConfig, "group", rf.Run.ResourceGroup,
		"courts", rf.Run.Courts, "slot_hour", rf.Run.Slot, "mode", rf.Run.Mode)
	return rf, nil
}

func (e env) openDB(ctx context.Context) (*db.DB, error) {
	d, err := db.Open(ctx, e.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func buildDirectory(dc config.DirectoryConfig) booking.Directory {
	if dc.Kind == config.DirectoryStatic {
		return directory.Static(dc.Static)
	}
	return directory.NewClient(dc.URL, directory.Credentials{Username: dc.Username, Password: dc.Password})
}

func buildController(cc config.ControllerConfig, dryRun bool, l *log.Logger) booking.Controller {
	if dryRun || cc.Kind == config.ControllerDryRun {
		return controller.NewDryRun(l)
	}
	return controller.NewAgent(cc.URL, cc.Token)
}

// buildSinks connects the configured result sinks. A sink that cannot be
// reached is logged and left out.
func (e env) buildSinks(ctx context.Context, metrics *notify.Metrics) (notify.Sink, func()) {
	sinks := append(notify.Fanout(nil), e.sinks...)
	var closers []func()
	if metrics != nil {
		sinks = append(sinks, metrics)
	}
	if e.cfg.MQTT.Enabled() {
		c, err := notify.DialMQTT(e.cfg.MQTT)
		if err != nil {
			e.log.Warn("mqtt disabled", "err", err)
		} else {
			sinks = append(sinks, notify.NewMQTTSink(c, e.cfg.MQTT.TopicPrefix))
			closers = append(closers, func() { c.Disconnect(250) })
		}
	}
	if e.cfg.Influx.Enabled() {
		w, closeFn, err := notify.DialInflux(ctx, e.cfg.Influx)
		if err != nil {
			e.log.Warn("influx disabled", "err", err)
		} else {
			sinks = append(sinks, notify.NewInfluxSink(w))
			closers = append(closers, closeFn)
		}
	}
	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}
