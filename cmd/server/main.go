// Command server runs the certificate registry HTTP service.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"qualinova/internal/access"
	accesshandler "qualinova/internal/access/handler"
	"qualinova/internal/audit"
	"qualinova/internal/authority"
	"qualinova/internal/certificate"
	certhandler "qualinova/internal/certificate/handler"
	certservice "qualinova/internal/certificate/service"
	certstore "qualinova/internal/certificate/store"
	"qualinova/internal/jwtgrant"
	"qualinova/internal/platform/config"
	"qualinova/internal/platform/httpserver"
	"qualinova/internal/platform/logger"
	"qualinova/internal/platform/metrics"
	"qualinova/internal/platform/middleware"
	platformredis "qualinova/internal/platform/redis"
	"qualinova/internal/verification"
	verifyhandler "qualinova/internal/verification/handler"
	"qualinova/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var (
		certStore  certstore.Store
		accStore   access.Store
		auditStore audit.Store
		runner     tx.Runner
		worker     *audit.Worker
	)

	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}

		certPG := certstore.NewPostgres(db)
		accPG := access.NewPostgres(db)
		auditPG := audit.NewPostgres(db)
		for _, migrate := range []func(context.Context) error{certPG.Migrate, accPG.Migrate, auditPG.Migrate} {
			if err := migrate(ctx); err != nil {
				return err
			}
		}
		certStore, accStore, auditStore = certPG, accPG, auditPG
		runner = tx.NewSQLRunner(db)

		if len(cfg.KafkaBrokers) > 0 {
			worker, err = audit.NewWorker(ctx, auditPG, cfg.KafkaBrokers, cfg.AuditTopic, log)
			if err != nil {
				return err
			}
			defer worker.Close()
		}
	} else {
		log.InfoContext(ctx, "no postgres configured, using in-memory stores")
		certStore = certstore.NewInMemory()
		accStore = access.NewInMemory()
		auditStore = audit.NewInMemory()
		runner = tx.NewMutexRunner()
	}

	var registry authority.Registry
	if cfg.AuthorityBaseURL != "" {
		registry = authority.NewClient(cfg.AuthorityBaseURL)
		redisClient, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return err
		}
		if redisClient != nil {
			defer redisClient.Close()
			registry = authority.NewCache(registry, redisClient, cfg.AuthorityCacheTTL, log)
		}
	} else {
		log.InfoContext(ctx, "no authority registry configured, using in-memory registry")
		registry = authority.NewInMemory()
	}

	m := metrics.New()
	auditor := audit.NewPublisher(auditStore, log)
	tokens := jwtgrant.NewService(cfg.JWTSigningKey, "qualinova")
	guard := access.NewGuard(accStore, auditor)
	clock := certificate.NewSystemClock()
	certSvc := certservice.New(guard, certStore, runner, clock, auditor, m, log)
	verifier := verification.NewEngine(certStore, registry, clock, m, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Tracing)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens, log))
		accesshandler.New(guard, tokens, log).Register(r)
		certhandler.New(certSvc, tokens, log).Register(r)
		verifyhandler.New(verifier, log).Register(r)
	})

	server := httpserver.New(cfg.Addr, r)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(ctx, "server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if worker != nil {
		g.Go(func() error {
			err := worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
