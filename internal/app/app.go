// Package app is the composition root of the dojo service. It turns a
// config.Config into wired storage, caching, messaging and application
// handlers shared by the API server, the worker and dojoctl.
package app

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/dojo-hub/dojo-management/config"
	"github.com/dojo-hub/dojo-management/internal/application/command"
	"github.com/dojo-hub/dojo-management/internal/application/eventhandler"
	"github.com/dojo-hub/dojo-management/internal/application/query"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/catalog"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/messaging"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/persistence/memory"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/persistence/postgres"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/persistence/redis"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/scheduler"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/dojo-hub/dojo-management/internal/interface/http"
	"github.com/dojo-hub/dojo-management/internal/interface/http/handlers"
	"github.com/dojo-hub/dojo-management/pkg/circuitbreaker"
	"github.com/dojo-hub/dojo-management/pkg/logger"
	"github.com/dojo-hub/dojo-management/pkg/retry"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APP
// ══════════════════════════════════════════════════════════════════════════════

// App holds every long-lived component of the service.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Clock   timeutil.Clock
	Catalog *catalog.Catalog
	Engine  *progression.Engine
	Members member.Repository
	Reports progression.ReportCache
	Bus     *messaging.InMemoryEventBus
	Health  *handlers.HealthChecker

	// Locker is nil when Redis is disabled.
	Locker jobs.Locker

	// Commands
	EnrollMember       *command.EnrollMemberHandler
	RecordAttendance   *command.RecordAttendanceHandler
	RegisterExamResult *command.RegisterExamResultHandler
	SetMemberActive    *command.SetMemberActiveHandler

	// Queries
	MemberReport *query.GetMemberReportHandler
	RosterReport *query.GetRosterReportHandler
	Ladder       *query.GetLadderHandler
	Estimate     *query.EstimateHandler

	closers []func()
}

// Options tweak construction, mostly for tests and dojoctl.
type Options struct {
	// Clock defaults to the system clock.
	Clock timeutil.Clock

	// Members replaces the configured storage driver.
	Members member.Repository
}

// NewLogger builds the service logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
		Console:   cfg.Observability.LogFormat == "console",
	}).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)
}

// New wires the service. Configuration errors abort; an unreachable Redis
// only disables caching.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (_ *App, err error) {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.SystemClock{}
	}
	if cfg.Features == nil {
		cfg.Features = config.LoadFeatureFlags()
	}

	a := &App{
		Config: cfg,
		Log:    log,
		Clock:  opts.Clock,
		Health: handlers.NewHealthChecker(cfg.App.Version),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. GRADE CATALOG & ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	a.Catalog, err = catalog.Load(cfg.Progression.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	a.Engine, err = progression.NewEngine(progression.EngineDeps{
		Ladder:    a.Catalog.Ladder,
		Weighting: a.Catalog.Weighting,
		Clock:     a.Clock,
		Config:    cfg.Progression.Engine(),
	})
	if err != nil {
		return nil, fmt.Errorf("progression engine: %w", err)
	}
	log.Info("grade catalog loaded",
		logger.Int("youth_grades", len(a.Catalog.Ladder.Grades(grade.CategoryYouth))),
		logger.Int("adult_grades", len(a.Catalog.Ladder.Grades(grade.CategoryAdult))),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	switch {
	case opts.Members != nil:
		a.Members = opts.Members
	case cfg.StorageDriver == config.StoragePostgres:
		if a.Members, err = a.connectPostgres(ctx); err != nil {
			return nil, err
		}
	default:
		log.Warn("using in-memory member storage; data is lost on restart")
		a.Members = memory.NewMemberStore()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REPORT CACHE
	// ─────────────────────────────────────────────────────────────────────────
	a.Reports = progression.NopReportCache{}
	if !cfg.Redis.Disabled {
		a.connectRedis(ctx)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	a.Bus = messaging.NewInMemoryEventBus(busCfg)

	if err = eventhandler.NewInvalidateReportsHandler(a.Reports, log).Register(a.Bus); err != nil {
		return nil, fmt.Errorf("subscribe cache invalidation: %w", err)
	}
	if err = eventhandler.NewOnGradePromotedHandler(a.isTerminal, log).Register(a.Bus); err != nil {
		return nil, fmt.Errorf("subscribe promotions: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	ladder := a.Catalog.Ladder
	a.EnrollMember = command.NewEnrollMemberHandler(a.Members, ladder, a.Bus, a.Clock)
	a.RecordAttendance = command.NewRecordAttendanceHandler(a.Members, a.Catalog.Weighting, a.Bus, a.Clock)
	a.RegisterExamResult = command.NewRegisterExamResultHandler(a.Members, ladder, a.Bus, a.Clock)
	a.SetMemberActive = command.NewSetMemberActiveHandler(a.Members, a.Bus, a.Clock)

	a.MemberReport = query.NewGetMemberReportHandler(a.Members, a.Engine, a.Reports, cfg.Features, log)
	a.RosterReport = query.NewGetRosterReportHandler(a.Members, a.Engine, a.Reports, cfg.Features, log)
	a.Ladder = query.NewGetLadderHandler(ladder)
	a.Estimate = query.NewEstimateHandler(a.Engine)

	return a, nil
}

func (a *App) connectPostgres(ctx context.Context) (member.Repository, error) {
	db := a.Config.Database
	a.Log.Info("connecting to database...")

	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.Connect(ctx, db.URL, postgres.PoolOptions{
			MaxConns:        int32(db.MaxOpenConns),
			MinConns:        int32(db.MaxIdleConns),
			MaxConnLifetime: db.ConnMaxLifetime,
			MaxConnIdleTime: db.ConnMaxIdleTime,
			QueryTimeout:    db.QueryTimeout,
		})
	}, retry.ConnectOptions(a.logRetry("postgres"))...)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, func() {
		a.Log.Info("closing database connection...")
		conn.Close()
	})
	a.Health.AddCheck("postgres", handlers.PingCheck(conn))

	if db.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.Log.Info("database schema is up to date")
	}
	return postgres.NewMemberRepository(conn), nil
}

func (a *App) connectRedis(ctx context.Context) {
	rc := a.Config.Redis
	a.Log.Info("connecting to Redis...")

	cache, err := retry.DoWithData(ctx, func(ctx context.Context) (*redis.Cache, error) {
		return redis.NewCache(ctx, redis.Config{
			URL:          rc.URL,
			Host:         rc.Host,
			Port:         rc.Port,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
			DialTimeout:  rc.DialTimeout,
			ReadTimeout:  rc.ReadTimeout,
			WriteTimeout: rc.WriteTimeout,
		})
	}, retry.ConnectOptions(a.logRetry("redis"))...)
	if err != nil {
		a.Log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		return
	}
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.Health.AddCheck("redis", handlers.PingCheck(cache))
	a.Locker = cache

	if !a.Config.Features.IsEnabled(config.FeatureReportCache) {
		a.Log.Info("report cache disabled by feature flag")
		return
	}
	breaker := circuitbreaker.CacheBreaker(redis.IsCacheFailure, func(name string, from, to circuitbreaker.State) {
		a.Log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	a.Reports = redis.NewGuardedReportCache(redis.NewReportCache(cache, rc.ReportTTL), breaker)
	a.Log.Info("Redis connection established", logger.Duration("report_ttl", rc.ReportTTL))
}

func (a *App) logRetry(target string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		a.Log.Warn("connection attempt failed",
			logger.String("target", target),
			logger.Int("attempt", attempt),
			logger.Duration("retry_in", delay),
			logger.Err(err),
		)
	}
}

func (a *App) isTerminal(id string) bool {
	terminal, err := a.Catalog.Ladder.IsTerminal(grade.ID(id))
	return err == nil && terminal
}

// ══════════════════════════════════════════════════════════════════════════════
// SURFACES
// ══════════════════════════════════════════════════════════════════════════════

// HTTPDependencies returns the handlers the API server needs.
func (a *App) HTTPDependencies() httpserver.Dependencies {
	return httpserver.Dependencies{
		EnrollMember:       a.EnrollMember,
		RecordAttendance:   a.RecordAttendance,
		RegisterExamResult: a.RegisterExamResult,
		SetMemberActive:    a.SetMemberActive,
		MemberReport:       a.MemberReport,
		RosterReport:       a.RosterReport,
		Ladder:             a.Ladder,
		Estimate:           a.Estimate,
		Health:             a.Health,
		Logger:             a.Log,
	}
}

// HTTPConfig maps the HTTP settings onto the server configuration.
func (a *App) HTTPConfig() httpserver.Config {
	h := a.Config.HTTP
	return httpserver.Config{
		Addr:            h.Addr,
		ReadTimeout:     h.ReadTimeout,
		WriteTimeout:    h.WriteTimeout,
		RequestTimeout:  h.RequestTimeout,
		TrustedProxies:  h.TrustedProxies,
		CORSAllowOrigin: h.CORSAllowOrigin,
		RateLimit: httpserver.RateLimitConfig{
			RequestsPerMinute: h.RateLimitPerMinute,
			Burst:             h.RateLimitBurst,
		},
		Release: a.Config.IsProduction(),
		Version: a.Config.App.Version,
	}
}

// NewScheduler registers the roster scan and the daily digest.
func (a *App) NewScheduler(sink jobs.DigestSink) (*scheduler.Scheduler, error) {
	sc := a.Config.Scheduler
	s := scheduler.New(scheduler.Config{
		Logger:            a.Log,
		Clock:             a.Clock,
		MaxConcurrentJobs: sc.MaxConcurrentJobs,
		JobTimeout:        sc.JobTimeout,
	})

	scan := jobs.NewRosterScanJob(jobs.RosterScanDeps{
		Roster:    a.RosterReport,
		Locker:    a.Locker,
		Features:  a.Config.Features,
		Publisher: a.Bus,
		Clock:     a.Clock,
		Logger:    a.Log,
	})
	every, err := scheduler.NewIntervalSchedule(sc.RosterScanInterval)
	if err != nil {
		return nil, fmt.Errorf("roster scan schedule: %w", err)
	}
	if err := s.Register(scan, every); err != nil {
		return nil, err
	}

	daily, err := scheduler.Daily(sc.DailyDigestHour, sc.DailyDigestMinute)
	if err != nil {
		return nil, fmt.Errorf("daily digest schedule: %w", err)
	}
	if err := s.Register(jobs.NewDailyDigestJob(a.RosterReport, sink, a.Clock, a.Log), daily); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases everything New acquired, in reverse order.
func (a *App) Close() {
	if a.Bus != nil {
		_ = a.Bus.Close()
	}
	closers := slices.Clone(a.closers)
	slices.Reverse(closers)
	for _, fn := range closers {
		fn()
	}
	a.closers = nil
}
