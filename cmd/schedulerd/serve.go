package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/warren/internal/checkpoint"
	"github.com/cuemby/warren/internal/controlapi"
	"github.com/cuemby/warren/internal/epilog"
	"github.com/cuemby/warren/internal/fitselect"
	"github.com/cuemby/warren/internal/jobtable"
	"github.com/cuemby/warren/internal/license"
	"github.com/cuemby/warren/internal/licsync"
	"github.com/cuemby/warren/internal/log"
	"github.com/cuemby/warren/internal/placement"
	"github.com/cuemby/warren/internal/preempt"
	"github.com/cuemby/warren/internal/scheduler"
	"github.com/spf13/cobra"
)

// chanKicker implements epilog.Kicker by nudging the main select loop
// through a buffered channel, so an epilog completion can trigger an
// out-of-cycle scheduling pass instead of waiting for the next tick.
type chanKicker struct {
	ch chan struct{}
}

func newChanKicker() *chanKicker {
	return &chanKicker{ch: make(chan struct{}, 1)}
}

// Kick implements epilog.Kicker. It never blocks: a pending, undelivered
// kick already covers the next wake-up.
func (k *chanKicker) Kick() {
	select {
	case k.ch <- struct{}{}:
	default:
	}
}

// demoNodeUniverse bounds the node-index space fitselect scans over. A real
// deployment sizes this from the node inventory the surrounding system
// manages; schedulerd has no node inventory of its own to read.
const demoNodeUniverse = 1024

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler loop and control API (no gang time-slicing)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadServerConfig(cmd.Flags())
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}

		store, err := checkpoint.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("opening checkpoint store: %w", err)
		}
		defer store.Close()

		pool := license.NewPool()
		if cfg.Licenses != "" {
			if err := pool.Configure(cfg.Licenses); err != nil {
				return fmt.Errorf("configuring license pool: %w", err)
			}
		}
		if snap, err := store.LoadLicenses(); err != nil {
			log.Logger.Warn().Err(err).Msg("failed to load license checkpoint, starting cold")
		} else {
			pool.Restore(snap)
		}

		table := jobtable.New()
		preemptEngine := preempt.NewEngine(nil, nil, log.WithComponent("preempt"))
		driver := placement.NewDriver(fitselect.New(demoNodeUniverse), log.WithComponent("placement"))

		kicker := newChanKicker()
		interlock := epilog.NewInterlock(kicker, table, log.WithComponent("epilog"))

		loop := scheduler.NewLoop(scheduler.Deps{
			Table:     table,
			Placement: driver,
			Licenses:  pool,
			Starter:   table,
			Spawner:   table,
			Config:    &cfg.Scheduling,
			Logger:    log.WithComponent("scheduler"),
		})

		srv := controlapi.NewServer(controlapi.Deps{
			Loop:  loop,
			Table: table,
			Preempt: &controlapi.Preemptor{
				Engine: preemptEngine,
				Params: preempt.Params{
					MinExemptPriority: cfg.Scheduling.PreemptParams.MinExemptPriority,
					YoungestFirst:     cfg.Scheduling.PreemptParams.YoungestFirst,
				},
			},
			Epilog: interlock,
			Logger: log.WithComponent("controlapi"),
		})

		var poller *licsync.Poller
		if cfg.LicenseSyncURL != "" {
			interval := time.Duration(cfg.LicenseSyncIntervalSec) * time.Second
			poller = licsync.NewPoller(pool, cfg.LicenseSyncURL, interval, log.WithComponent("licsync"))
			poller.Start()
		}

		errCh := make(chan error, 1)
		go func() {
			log.Logger.Info().Str("addr", cfg.ListenAddr).Msg("control API listening")
			if err := srv.Start(cfg.ListenAddr); err != nil {
				errCh <- err
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		ticker := time.NewTicker(cfg.Scheduling.SchedInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				result := loop.Run(time.Now())
				log.Logger.Info().Int("started", result.Started).Str("cutoff", result.Cutoff).Msg("scheduling cycle")
			case <-kicker.ch:
				result := loop.Run(time.Now())
				log.Logger.Info().Int("started", result.Started).Str("cutoff", result.Cutoff).Msg("kicked scheduling cycle")
			case sig := <-stop:
				log.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
				return shutdown(srv, poller, store, pool)
			case err := <-errCh:
				shutdown(srv, poller, store, pool)
				return err
			}
		}
	},
}

func shutdown(srv *controlapi.Server, poller *licsync.Poller, store *checkpoint.Store, pool *license.Pool) error {
	if poller != nil {
		poller.Stop()
	}
	if err := store.SaveLicenses(pool.Snapshot()); err != nil {
		log.Logger.Error().Err(err).Msg("failed to checkpoint license pool")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
