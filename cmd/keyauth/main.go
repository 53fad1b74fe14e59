package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/adapters/events"
	"github.com/layer-3/keyauth/adapters/ledger"
	"github.com/layer-3/keyauth/adapters/stellar"
	"github.com/layer-3/keyauth/adapters/store"
	"github.com/layer-3/keyauth/adapters/tokenizer"
	"github.com/layer-3/keyauth/internal/config"
	"github.com/layer-3/keyauth/internal/logging"
	"github.com/layer-3/keyauth/internal/metrics"
	"github.com/layer-3/keyauth/ports"
	"github.com/layer-3/keyauth/service"
	transport "github.com/layer-3/keyauth/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "keyauth:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	signer, err := stellar.ParseSeed(cfg.SigningSeed)
	if err != nil {
		return fmt.Errorf("SIGNING_SEED: %w", err)
	}

	var (
		kv          ports.Store
		redisClient *redis.Client
	)
	switch cfg.StoreBackend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		kv = store.NewRedisStore(redisClient)
	default:
		logger.Warn("using in-memory store; nonces and sessions are not shared between instances")
		kv = store.NewMemoryStore()
	}

	var accounts ports.AccountProvider
	switch cfg.LedgerBackend {
	case "static":
		logger.Warn("using static ledger; every account resolves to its master key")
		accounts = ledger.NewStaticProvider(true)
	default:
		accounts = ledger.NewHorizonProvider(cfg.HorizonURL, &http.Client{Timeout: cfg.LookupTimeout})
	}

	var (
		eventPub  ports.EventPublisher = events.NopPublisher{}
		publisher *redisstream.Publisher
	)
	if cfg.EventsEnabled {
		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		eventPub = events.NewWatermillPublisher(publisher)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := service.DefaultOptions()
	opts.ChallengeTTL = cfg.ChallengeTTL
	opts.SessionTTL = cfg.SessionTTL
	opts.HomeDomains = cfg.HomeDomainList()
	opts.RequiredThreshold = cfg.Threshold()
	opts.NetworkPassphrase = cfg.NetworkPassphrase
	opts.NonceSize = cfg.NonceSize
	opts.ClockSkew = cfg.ClockSkew
	opts.StoreTimeout = cfg.StoreTimeout
	opts.LookupTimeout = cfg.LookupTimeout
	opts.KeyPrefix = cfg.KeyPrefix

	authService, err := service.NewAuthService(
		opts,
		signer,
		tokenizer.NewJWTTokenizer(signer, stellar.Verifier{}),
		stellar.Verifier{},
		kv,
		accounts,
		eventPub,
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		return err
	}

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.SetupRouter(authService, logger, transport.Config{
		AccountNotFoundStatus: cfg.AccountNotFoundStatus,
		Metrics:               promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("keyauth listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("signing_account", signer.Address()),
			zap.String("network", cfg.Network),
			zap.Strings("home_domains", opts.HomeDomains),
			zap.String("threshold", string(opts.RequiredThreshold)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if publisher != nil {
		err = multierr.Append(err, publisher.Close())
	}
	err = multierr.Append(err, kv.Close())
	return err
}
