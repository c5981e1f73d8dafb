// Package main - точка входа для фоновых процессов (Worker) dojo-management.
//
// Worker отвечает за периодические задачи:
// - Сканирование состава и предупреждения о просроченных аттестациях
// - Ежедневный дайджест учеников, готовых к экзамену
//
// Несколько реплик безопасны: сканирование берёт блокировку в Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dojo-hub/dojo-management/config"
	"github.com/dojo-hub/dojo-management/internal/app"
	"github.com/dojo-hub/dojo-management/pkg/logger"
)

func main() {
	once := flag.String("once", "", "run the named job once and exit (roster_scan, daily_digest)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, *once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, once string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := app.NewLogger(cfg).With(logger.Component("worker"))
	log.Info("starting dojo-management worker",
		logger.String("storage", string(cfg.StorageDriver)),
		logger.Bool("redis", !cfg.Redis.Disabled),
	)
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("worker is running on in-memory storage and will only see its own members")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ИНФРАСТРУКТУРА И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := a.NewScheduler(nil)
	if err != nil {
		return fmt.Errorf("failed to configure scheduler: %w", err)
	}

	if once != "" {
		res, err := sched.RunNow(ctx, once)
		if err != nil {
			return fmt.Errorf("job %s: %w", once, err)
		}
		log.Info("job finished", logger.String("job", once), logger.Duration("duration", res.Duration))
		return nil
	}

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, nothing to do")
		<-ctx.Done()
		return nil
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	for _, job := range sched.ListJobs() {
		log.Info("job scheduled",
			logger.String("job", job.Name),
			logger.String("schedule", job.Schedule),
			logger.Time("next_run", job.NextRun),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal, stopping scheduler...")

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop", logger.Err(err))
	}
	log.Info("shutdown completed successfully")
	return nil
}
