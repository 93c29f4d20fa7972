package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	celeval "adpilot/pkg/cel"

	"adpilot/internal/broker"
	"adpilot/internal/confidence"
	"adpilot/internal/config"
	"adpilot/internal/constants"
	"adpilot/internal/execlog"
	"adpilot/internal/executor"
	"adpilot/internal/logger"
	"adpilot/internal/platform"
	"adpilot/internal/processor"
	"adpilot/internal/quota"
	"adpilot/internal/rules"
	"adpilot/internal/streaming"
	"adpilot/pkg/bootstrap"
	"adpilot/pkg/circuitbreaker"
	"adpilot/pkg/metrics"
	"adpilot/pkg/migrations"
	"adpilot/pkg/models"
	"adpilot/pkg/tracing"
)

const serviceName = "rules-engine"

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector

	db          *sql.DB
	redisClient *redis.Client
	mongoClient *mongo.Client

	ruleCache      *rules.Cache
	processor      *processor.Processor
	supervisor     *streaming.Supervisor
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitProducer(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initEngine(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterEngineMetrics()
	metrics.RegisterStreamingMetrics()
	metrics.RegisterAdminMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.Config.Database.RunMigrations {
		if err := a.dbConnector.RunPostgresMigrations(db, "migrations/postgres"); err != nil {
			return err
		}
	}

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = redisClient

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient

	if err := migrations.EnsureMongoCollection(ctx, a.mongoDatabase()); err != nil {
		return fmt.Errorf("failed to prepare audit collection: %w", err)
	}

	return nil
}

func (a *App) mongoDatabase() *mongo.Database {
	name := a.Config.Database.MongoDB.Database
	if name == "" {
		name = constants.DefaultMongoDBName
	}
	return a.mongoClient.Database(name)
}

func (a *App) initEngine(ctx context.Context) error {
	cfg := a.Config

	cel, err := celeval.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	repo := rules.NewRepository(a.db, a.Logger, a.onInvalidRule)
	a.ruleCache = rules.NewCache(repo, cfg.Engine.RuleCache.TTL, cfg.Engine.RuleCache.NegativeTTL, a.Logger)

	var predictor confidence.Predictor = confidence.NewHTTPPredictor(cfg.Confidence, a.Logger)
	var platformClient platform.Client = platform.NewHTTPClient(cfg.Platform, a.Logger)
	if cfg.CircuitBreaker.Enabled {
		predictor = confidence.NewBreakerPredictor(predictor, circuitbreaker.DefaultConfig("confidence-service"))
		platformClient = platform.NewBreakerClient(platformClient, circuitbreaker.DefaultConfig("platform-api"))
	}

	tracker := quota.NewTracker(quota.NewRedisStore(a.redisClient), cfg.Engine.Quota.KeyTTL, a.Logger)

	exec := executor.New(
		platformClient,
		tracker,
		a.publishAlert,
		executor.Options{
			PlatformRPS:   cfg.Engine.Executor.PlatformRPS,
			PlatformBurst: cfg.Engine.Executor.PlatformBurst,
			ActionTimeout: cfg.Engine.Executor.ActionTimeout,
		},
		a.Logger,
	)

	recorder := execlog.NewRecorder(a.mongoDatabase(), a.Producer, cfg.Broker.Kafka.ExecutionsLogTopic, a.Logger)

	a.processor = processor.New(
		a.ruleCache,
		rules.NewEvaluator(cel, a.Logger),
		confidence.NewGate(predictor, a.Logger),
		exec,
		recorder,
		a.Producer,
		processor.Topics{
			ProcessingLogs: cfg.Broker.Kafka.ProcessingLogTopic,
			Alerts:         cfg.Broker.Kafka.AlertsTopic,
		},
		a.Logger,
	)

	a.supervisor = streaming.NewSupervisor(a.newStream, cfg.Streaming, a.publishAlert, a.Logger)
	return nil
}

// newStream builds a fresh consumer set. Called for the initial start and by
// the supervisor on every restart.
func (a *App) newStream() (streaming.Stream, error) {
	metricsConsumer, err := a.NewConsumer(serviceName)
	if err != nil {
		return nil, err
	}

	var updatesConsumer broker.Consumer
	if a.Config.Broker.Kafka.RuleUpdatesTopic != "" {
		updatesConsumer, err = a.NewConsumer(serviceName)
		if err != nil {
			metricsConsumer.Close()
			return nil, err
		}
	}

	return streaming.NewEngineStream(
		metricsConsumer,
		updatesConsumer,
		a.Config.Broker.Kafka.InputTopic,
		a.Config.Broker.Kafka.RuleUpdatesTopic,
		a.processor.HandleMessage,
		a.processor.HandleRuleUpdate,
		a.Logger,
	), nil
}

func (a *App) publishAlert(ctx context.Context, alert models.Alert) error {
	return a.processor.PublishAlert(ctx, alert)
}

func (a *App) onInvalidRule(ctx context.Context, tenantID, ruleID string, cause error) {
	alert := models.Alert{
		AlertID:  ruleID + "-invalid",
		TenantID: tenantID,
		RuleID:   ruleID,
		Severity: models.AlertSeverityWarning,
		Source:   models.AlertSourceRuleLoad,
		Message:  fmt.Sprintf("rule %s excluded from active set: %v", ruleID, cause),
	}
	if err := a.publishAlert(ctx, alert); err != nil {
		a.Logger.ErrorwCtx(ctx, "Failed to publish invalid rule alert",
			"rule_id", ruleID,
			"error", err,
		)
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	if err := a.supervisor.Start(gCtx); err != nil {
		return fmt.Errorf("failed to start streaming supervisor: %w", err)
	}

	g.Go(func() error {
		<-gCtx.Done()
		return gCtx.Err()
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down rules engine")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.supervisor != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.supervisor.Stop(stopCtx); err != nil {
				errs = append(errs, fmt.Errorf("supervisor stop error: %w", err))
			}
		}

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
