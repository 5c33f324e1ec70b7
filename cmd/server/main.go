package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vcissuer/internal/audit"
	"vcissuer/internal/authorization"
	authHandler "vcissuer/internal/authorization/handler"
	"vcissuer/internal/delivery"
	"vcissuer/internal/issuance"
	issuanceHandler "vcissuer/internal/issuance/handler"
	"vcissuer/internal/kmsjwt"
	jwksHandler "vcissuer/internal/kmsjwt/handler"
	"vcissuer/internal/platform/config"
	"vcissuer/internal/platform/database"
	"vcissuer/internal/platform/health"
	"vcissuer/internal/platform/httpserver"
	"vcissuer/internal/platform/kafka"
	"vcissuer/internal/platform/kafka/producer"
	"vcissuer/internal/platform/logger"
	"vcissuer/internal/platform/metrics"
	redisclient "vcissuer/internal/platform/redis"
	"vcissuer/internal/platform/tracer"
	"vcissuer/internal/seeder"
	"vcissuer/internal/session/claims"
	"vcissuer/internal/session/statemachine"
	"vcissuer/internal/session/store"
	"vcissuer/internal/sessionrequest"
	sessionHandler "vcissuer/internal/sessionrequest/handler"
	httptransport "vcissuer/internal/transport/http"
	"vcissuer/internal/userinfo"
	userinfoHandler "vcissuer/internal/userinfo/handler"
	"vcissuer/internal/vendor"
	"vcissuer/pkg/platform/circuit"
)

// closer is run in reverse registration order on shutdown.
type closer func(ctx context.Context) error

type infra struct {
	cfg      config.Config
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	health   *health.Handler
	aws      *session.Session
	producer *producer.Producer
	closers  []closer
}

func (i *infra) onShutdown(c closer) {
	i.closers = append(i.closers, c)
}

func (i *infra) shutdown(ctx context.Context) {
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](ctx); err != nil {
			i.log.Warn("shutdown step failed", "error", err)
		}
	}
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)
	log.Info("initializing vc issuer",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"session_store", cfg.Session.Backend,
		"delivery", cfg.Delivery.Backend,
	)

	ctx := context.Background()
	app, err := buildInfra(cfg, log)
	if err != nil {
		log.Error("failed to initialize infrastructure", "error", err)
		os.Exit(1)
	}

	router, err := buildRouter(ctx, app)
	if err != nil {
		log.Error("failed to wire services", "error", err)
		app.shutdown(ctx)
		os.Exit(1)
	}

	srv := httpserver.New(cfg.Server.Addr, router)
	log.Info("starting http server", "addr", cfg.Server.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	app.shutdown(shutdownCtx)

	log.Info("server stopped")
}

func buildInfra(cfg config.Config, log *slog.Logger) (*infra, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	awsConfig := aws.NewConfig().WithRegion(cfg.AWS.Region)
	if cfg.AWS.Endpoint != "" {
		awsConfig = awsConfig.WithEndpoint(cfg.AWS.Endpoint)
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	app := &infra{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  metrics.New(registry),
		health:   health.New(cfg.Server.Environment),
		aws:      sess,
	}

	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(producer.Config{
			Brokers:         cfg.Kafka.Brokers,
			Acks:            cfg.Kafka.Acks,
			Retries:         cfg.Kafka.Retries,
			DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
		},
			producer.WithLogger(log),
			producer.WithErrorHandler(func(msg *producer.Message, err error) {
				log.Error("async kafka delivery failed", "topic", msg.Topic, "error", err)
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
		app.producer = p
		app.health.Add(kafka.NewHealthChecker(p.Client()))
		app.onShutdown(p.Close)
	}
	return app, nil
}

func buildRouter(ctx context.Context, app *infra) (http.Handler, error) {
	cfg, log := app.cfg, app.log

	sessions, err := buildSessionStore(ctx, app)
	if err != nil {
		return nil, err
	}
	claimStore, err := buildClaimStore(ctx, app)
	if err != nil {
		return nil, err
	}
	if cfg.Server.SeedDemoData {
		if _, err := seeder.New(sessions, claimStore, log).SeedAll(ctx); err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}
	sender, err := buildSender(app)
	if err != nil {
		return nil, err
	}
	auditor := buildAuditPublisher(app)

	signer := kmsjwt.New(
		kmsjwt.NewKMSKeyService(kms.New(app.aws)),
		kmsjwt.Config{
			SigningKeyID:          cfg.Keys.SigningKeyID,
			DecryptionAliasBase:   cfg.Keys.EncryptionAliasBase,
			RotationEnabled:       cfg.Keys.RotationEnabled,
			LegacyDecryptionKeyID: cfg.Keys.LegacyEncryptionKeyID,
			JWKSDefaultTTL:        cfg.JWKS.DefaultTTL,
		},
		kmsjwt.WithLogger(log),
		kmsjwt.WithMetrics(app.metrics),
	)

	trc := tracer.NewOTel()
	machine := statemachine.New(sessions,
		statemachine.WithLogger(log),
		statemachine.WithMetrics(app.metrics),
	)
	vendorClient := vendor.New(vendor.Config{
		BaseURL:     cfg.Vendor.BaseURL,
		SDKID:       cfg.Vendor.SDKID,
		APIKey:      cfg.Vendor.APIKey,
		Timeout:     cfg.Vendor.Timeout,
		MaxAttempts: cfg.Vendor.MaxAttempts,
		Backoff:     cfg.Vendor.Backoff,
	},
		vendor.WithLogger(log),
		vendor.WithMetrics(app.metrics),
		vendor.WithTracer(trc),
	)

	issuer := issuance.New(sessions, machine, claimStore, vendorClient, signer, sender, auditor,
		issuance.Config{Issuer: cfg.Issuer.URL, IssuerDNS: cfg.Issuer.DNSSuffix},
		issuance.WithLogger(log),
		issuance.WithMetrics(app.metrics),
		issuance.WithTracer(trc),
	)
	authorizer := authorization.New(sessions, machine, signer, auditor,
		authorization.Config{
			Issuer:         cfg.Issuer.URL,
			IssuerDNS:      cfg.Issuer.DNSSuffix,
			AuthCodeTTL:    cfg.Tokens.AuthCodeTTL,
			AccessTokenTTL: cfg.Tokens.AccessTokenTTL,
		},
		authorization.WithLogger(log),
	)
	clients := make([]sessionrequest.Client, 0, len(cfg.Clients))
	for _, c := range cfg.Clients {
		clients = append(clients, sessionrequest.Client{ID: c.ID, RedirectURI: c.RedirectURI, JWKSEndpoint: c.JWKSEndpoint})
	}
	if len(clients) == 0 {
		log.Warn("no relying party clients configured; every session request will be rejected")
	}
	starter := sessionrequest.New(sessions, claimStore, signer, auditor,
		sessionrequest.Config{
			Issuer:     cfg.Issuer.URL,
			SessionTTL: cfg.Session.TTL,
			Clients:    clients,
		},
		sessionrequest.WithLogger(log),
	)
	userInfo := userinfo.New(sessions, signer, userinfo.WithLogger(log))

	return httptransport.NewRouter(
		httptransport.RouterConfig{
			MetricsHandler: promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry}),
		},
		log,
		app.health,
		jwksHandler.New(signer, log),
		sessionHandler.New(starter, log),
		issuanceHandler.New(issuer, log),
		authHandler.New(authorizer, log),
		userinfoHandler.New(userInfo, log),
	), nil
}

func buildSessionStore(ctx context.Context, app *infra) (store.Store, error) {
	cfg := app.cfg
	switch cfg.Session.Backend {
	case "redis":
		client, err := redisclient.New(ctx, cfg.Redis, app.registry)
		if err != nil {
			return nil, err
		}
		app.health.Add(client)
		app.onShutdown(func(context.Context) error { return client.Close() })
		return store.NewRedis(client.Client, cfg.Session.TTL), nil
	case "dynamodb":
		return store.NewDynamo(dynamodb.New(app.aws), cfg.Session.Table), nil
	default:
		app.log.Warn("using in-memory session store; sessions are lost on restart")
		return store.NewInMemory(), nil
	}
}

type claimStore interface {
	sessionrequest.ClaimStore
	issuance.ClaimStore
	seeder.ClaimStore
}

func buildClaimStore(ctx context.Context, app *infra) (claimStore, error) {
	if app.cfg.Database.URL == "" {
		return claims.NewInMemory(), nil
	}
	pool, err := database.Open(ctx, app.cfg.Database)
	if err != nil {
		return nil, err
	}
	app.health.Add(pool)
	app.onShutdown(func(context.Context) error { return pool.Close() })
	return claims.NewPostgres(pool.DB()), nil
}

func buildSender(app *infra) (issuance.Sender, error) {
	cfg := app.cfg
	switch cfg.Delivery.Backend {
	case "sqs":
		return delivery.NewSQSSender(sqs.New(app.aws), cfg.Delivery.QueueURL, app.log, app.metrics), nil
	default:
		if app.producer == nil {
			return nil, errors.New("kafka delivery requires KAFKA_BROKERS")
		}
		return delivery.NewKafkaSender(app.producer, cfg.Delivery.Topic, app.log, app.metrics), nil
	}
}

// buildAuditPublisher writes to Kafka when a producer exists, falling back to
// the log while the breaker is open. Without Kafka the log is the only sink.
func buildAuditPublisher(app *infra) *audit.Publisher {
	logSink := audit.NewLogSink(app.log)
	if app.producer == nil {
		return audit.NewPublisher(logSink,
			audit.WithLogger(app.log),
			audit.WithMetrics(app.metrics),
		)
	}
	publisher := audit.NewPublisher(audit.NewKafkaSink(app.producer, app.cfg.Kafka.AuditTopic),
		audit.WithAsyncBuffer(app.cfg.Kafka.AuditBuffer),
		audit.WithFallback(logSink, circuit.New("audit-kafka")),
		audit.WithLogger(app.log),
		audit.WithMetrics(app.metrics),
	)
	// Runs before the producer closes so buffered events still flush.
	app.onShutdown(func(context.Context) error {
		publisher.Close()
		return nil
	})
	return publisher
}
