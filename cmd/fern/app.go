package main

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/lineage"
	"github.com/Ramsey-B/fern/pkg/logger"
	"github.com/Ramsey-B/fern/pkg/movers"
	"github.com/Ramsey-B/fern/pkg/movers/httpmover"
	"github.com/Ramsey-B/fern/pkg/movers/objectmover"
	"github.com/Ramsey-B/fern/pkg/orchestration"
	fredis "github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/stagelog"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	lockKeyPrefix = "fern:lock:"
	cdcKeyName    = "fern:cdc_key"
)

// app holds the connected dependencies and the services built on them.
type app struct {
	cfg    *config.Config
	logger ectologger.Logger

	db       database.DB
	redis    *fredis.Client
	producer *kafka.Producer
	graph    *lineage.Client
	mover    orchestration.DatasetMover

	catalog      *repositories.Catalog
	stageLogs    *stagelog.Manager
	orchestrator *orchestration.Orchestrator

	startup      *startup.Startup
	syncLogger   func() error
	stopTracing  func(context.Context) error
	migrateFirst bool
}

// newApp loads configuration and builds the logger and tracer. Nothing is
// connected until start.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	log, syncLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.PrettyLogs, AppName: cfg.AppName})
	if err != nil {
		return nil, err
	}

	stopTracing, err := tracing.Setup(ctx, cfg.Tracing(), log)
	if err != nil {
		_ = syncLogger()
		return nil, err
	}

	a := &app{
		cfg:         cfg,
		logger:      log,
		syncLogger:  syncLogger,
		stopTracing: stopTracing,
	}
	a.startup = startup.NewStartup(log, cfg.StartupMaxAttempts)
	return a, nil
}

// start connects every configured dependency, retrying with backoff, and
// builds the services.
func (a *app) start(ctx context.Context) error {
	a.startup.AddDependency(startup.Dependency{Name: "database", StartFunc: a.connectDatabase, StopFunc: a.closeDatabase})
	requires := []string{"database"}

	if a.cfg.RedisHost != "" {
		a.startup.AddDependency(startup.Dependency{Name: "redis", StartFunc: a.connectRedis, StopFunc: a.closeRedis})
		requires = append(requires, "redis")
	}
	if len(a.cfg.KafkaBrokerList()) > 0 {
		a.startup.AddDependency(startup.Dependency{Name: "kafka", StartFunc: a.connectKafka, StopFunc: a.closeKafka})
		requires = append(requires, "kafka")
	}
	if a.cfg.Neo4jURI != "" {
		a.startup.AddDependency(startup.Dependency{Name: "neo4j", StartFunc: a.connectNeo4j, StopFunc: a.closeNeo4j})
		requires = append(requires, "neo4j")
	}
	a.startup.AddDependency(startup.Dependency{Name: "mover", StartFunc: a.buildMover})
	requires = append(requires, "mover")

	a.startup.AddDependency(startup.Dependency{Name: "services", Requires: requires, StartFunc: a.buildServices})

	return a.startup.Start(ctx)
}

// close stops every dependency and flushes telemetry.
func (a *app) close(ctx context.Context) {
	if err := a.startup.Stop(ctx); err != nil {
		a.logger.WithContext(ctx).WithError(err).Warn("Failed to stop dependencies cleanly")
	}
	if err := a.stopTracing(ctx); err != nil {
		a.logger.WithContext(ctx).WithError(err).Warn("Failed to flush traces")
	}
	_ = a.syncLogger()
}

func (a *app) connectDatabase(ctx context.Context) error {
	db, err := database.Open(ctx, a.cfg.Database(), a.logger)
	if err != nil {
		return err
	}
	a.db = db

	if a.migrateFirst {
		if err := a.migrations().Migrate(db.SqlDB(), a.cfg.DatabaseName); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

func (a *app) closeDatabase(context.Context) error {
	return a.db.Close()
}

func (a *app) migrations() *database.MigrationService {
	return database.NewMigrationService(a.logger, a.cfg.Migrations())
}

func (a *app) connectRedis(ctx context.Context) error {
	client, err := fredis.NewClient(ctx, fredis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	return nil
}

func (a *app) closeRedis(context.Context) error {
	return a.redis.Close()
}

func (a *app) connectKafka(context.Context) error {
	a.producer = kafka.NewProducer(kafka.ParseConfig(a.cfg.KafkaBrokers, a.cfg.KafkaTopic), a.logger)
	return nil
}

func (a *app) closeKafka(context.Context) error {
	return a.producer.Close()
}

func (a *app) connectNeo4j(ctx context.Context) error {
	client, err := lineage.NewClient(lineage.Config{
		URI:      a.cfg.Neo4jURI,
		Username: a.cfg.Neo4jUser,
		Password: a.cfg.Neo4jPassword,
		Database: a.cfg.Neo4jDatabase,
	}, a.logger)
	if err != nil {
		return err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return errors.Wrap(err, "neo4j connectivity")
	}
	a.graph = client
	return nil
}

func (a *app) closeNeo4j(ctx context.Context) error {
	return a.graph.Close(ctx)
}

func (a *app) buildMover(ctx context.Context) error {
	switch a.cfg.Mover {
	case "http":
		mover, err := httpmover.New(httpmover.Config{
			URL:          a.cfg.MoverURL,
			Timeout:      a.cfg.MoverTimeout,
			SuccessExpr:  a.cfg.MoverSuccessExpr,
			RowsExpr:     a.cfg.MoverRowsExpr,
			MaxBodyBytes: int64(a.cfg.MoverMaxBodyBytes),
		}, a.logger)
		if err != nil {
			return err
		}
		a.mover = mover
	case "object":
		store, err := objectmover.NewMinioStore(ctx, objectmover.MinioConfig{
			Endpoint:     a.cfg.MinioEndpoint,
			AccessKey:    a.cfg.MinioAccessKey,
			SecretKey:    a.cfg.MinioSecretKey,
			UseSSL:       a.cfg.MinioUseSSL,
			Bucket:       a.cfg.MinioBucket,
			CreateBucket: a.cfg.MinioCreateBucket,
		})
		if err != nil {
			return err
		}
		a.mover = objectmover.New(store, a.cfg.MinioLandingPrefix, a.logger)
	default:
		a.mover = movers.NewNoop(a.logger)
	}
	a.logger.WithContext(ctx).Infof("Using %s mover", a.cfg.Mover)
	return nil
}

func (a *app) buildServices(context.Context) error {
	a.catalog = repositories.NewCatalog(a.db, a.logger)

	var logOpts []stagelog.Option
	if a.producer != nil {
		logOpts = append(logOpts, stagelog.WithPublisher(a.producer))
	}
	a.stageLogs = stagelog.NewManager(repositories.NewStageLogRepository(a.db, a.logger), a.logger, logOpts...)

	var opts []orchestration.Option
	if a.redis != nil {
		opts = append(opts,
			orchestration.WithLocker(fredis.NewLocker(a.redis, lockKeyPrefix)),
			orchestration.WithAllocator(fredis.NewRunKeyAllocator(a.redis, cdcKeyName)),
		)
	}
	if a.graph != nil {
		opts = append(opts, orchestration.WithLineage(lineage.NewRecorder(a.graph, a.logger)))
	}

	a.orchestrator = orchestration.New(a.catalog, a.stageLogs, a.mover, a.logger, orchestration.Options{
		Concurrency:   a.cfg.OrchestrationConcurrency,
		RawStage:      a.cfg.RawStage,
		EnrichedStage: a.cfg.EnrichedStage,
		RunID:         a.cfg.RunID,
		LockTTL:       a.cfg.PassLockTTL,
	}, opts...)
	return nil
}

// healthChecker registers a probe per connected dependency.
func (a *app) healthChecker() *health.Checker {
	checker := health.NewChecker(Version).Require("database", a.db.PingContext)
	if a.redis != nil {
		checker.Require("redis", a.redis.Ping)
	}
	if a.graph != nil {
		checker.Optional("neo4j", a.graph.VerifyConnectivity)
	}
	return checker
}

// withApp runs fn against a started app and always tears it down.
func withApp(ctx context.Context, migrateFirst bool, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	a.migrateFirst = migrateFirst
	defer a.close(context.WithoutCancel(ctx))

	if err := a.start(ctx); err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	return fn(ctx, a)
}
