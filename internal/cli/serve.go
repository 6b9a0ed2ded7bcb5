package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/airgrid-tv/airgrid/internal/api"
	"github.com/airgrid-tv/airgrid/internal/app/jobs"
	"github.com/airgrid-tv/airgrid/internal/app/profile"
	"github.com/airgrid-tv/airgrid/internal/app/programming"
	"github.com/airgrid-tv/airgrid/internal/app/runner"
	"github.com/airgrid-tv/airgrid/internal/app/scoring"
	"github.com/airgrid-tv/airgrid/internal/config"
	"github.com/airgrid-tv/airgrid/internal/domain"
	"github.com/airgrid-tv/airgrid/internal/infra/metacache"
	"github.com/airgrid-tv/airgrid/internal/infra/schedule"
	"github.com/airgrid-tv/airgrid/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the airgrid API server",
	Long: `Start the HTTP server: programming run submission, job inspection,
stored results, and the streaming job event feed. External adapters
(content catalog, metadata provider, channel sink) are registered by the
deployment; without them, run submission reports the catalog as
unavailable.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		cfg.Log.Level = override
	}
	log := newLogger(cfg.Log.Level, cfg.Log.Pretty)

	loc := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
		}
	}

	profiles, err := profile.LoadDir(cfg.Profiles.Dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.Profiles.Dir).Msg("profile directory not loaded")
		profiles = map[string]*domain.Profile{}
	}
	log.Info().Int("profiles", len(profiles)).Msg("profiles loaded")

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	coordinator := jobs.New(jobs.Config{
		SubscriberBuffer: cfg.Stream.SubscriberBuffer,
		MaxJobs:          cfg.Jobs.MaxJobs,
	}, log.With().Str("comp", "jobs").Logger())

	engine := scoring.NewEngine()
	generator := programming.NewGenerator(engine,
		programming.WithLocation(loc),
		programming.WithLogger(log.With().Str("comp", "generator").Logger()),
	)

	resolver := func(id string) (*domain.Profile, error) {
		p, ok := profiles[id]
		if !ok {
			return nil, domain.ErrProfileNotFound
		}
		return p, nil
	}

	svc := runner.New(runner.DefaultConfig(), coordinator, generator, resolver,
		log.With().Str("comp", "runner").Logger())
	svc.SetHistory(db)

	if cfg.Redis.Enabled {
		cacheCfg := metacache.DefaultRedisConfig()
		cacheCfg.Addr = cfg.Redis.Addr
		cacheCfg.Password = cfg.Redis.Password
		cacheCfg.DB = cfg.Redis.DB
		cache, err := metacache.NewRedis(cmd.Context(), cacheCfg)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-memory metadata cache")
			svc.SetCache(metacache.NewMemory())
		} else {
			defer cache.Close()
			svc.SetCache(cache)
		}
	} else {
		svc.SetCache(metacache.NewMemory())
	}

	// Recurring runs.
	if cfg.Profiles.SchedulesPath != "" {
		entries, err := schedule.LoadFile(cfg.Profiles.SchedulesPath)
		if err != nil {
			return err
		}
		runnerLog := log.With().Str("comp", "schedule").Logger()
		scheduleRunner := schedule.NewRunner(entries, func(entry schedule.Entry) {
			_, err := svc.StartProgramming(domain.ProgrammingRequest{
				ChannelID:        entry.ChannelID,
				ProfileID:        entry.ProfileID,
				Iterations:       entry.Iterations,
				Randomness:       entry.Randomness,
				DurationDays:     entry.DurationDays,
				ReplaceForbidden: entry.ReplaceForbidden,
				ImproveBest:      entry.ImproveBest,
			})
			if err != nil {
				runnerLog.Error().Err(err).Str("schedule", entry.Name).Msg("scheduled run failed to start")
			}
		}, runnerLog)
		scheduleRunner.Start()
		defer scheduleRunner.Stop()
	}

	// Periodic job cleanup.
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupDone:
				return
			case <-ticker.C:
				coordinator.CleanupOlder(time.Duration(cfg.Jobs.RetentionHours) * time.Hour)
			}
		}
	}()
	defer close(cleanupDone)

	server := api.NewServer(svc, coordinator, db,
		time.Duration(cfg.Stream.KeepaliveSeconds)*time.Second,
		log.With().Str("comp", "api").Logger())

	httpServer := &http.Server{
		Addr:    cfg.API.Addr(),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.API.Addr()).Msg("api server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stop:
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}
	return nil
}
