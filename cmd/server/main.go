// Command server runs the employee-ID verification gateway.
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

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"idgate/internal/platform/config"
	"idgate/internal/platform/httpserver"
	"idgate/internal/platform/logger"
	"idgate/internal/platform/metrics"
	platformredis "idgate/internal/platform/redis"
	"idgate/internal/verify/audit"
	"idgate/internal/verify/crypto"
	"idgate/internal/verify/handler"
	"idgate/internal/verify/identitysource"
	"idgate/internal/verify/qr"
	"idgate/internal/verify/service"
	"idgate/internal/verify/store"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if err := run(cfg, log); err != nil {
		log.Error("gateway exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var (
		contexts   store.ContextStore
		identities store.IdentityStore
		qrHistory  store.QRHistoryStore
		auditDB    *sql.DB
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
		contexts = store.NewPostgresContextStore(db)
		identities = store.NewPostgresIdentityStore(db)
		qrHistory = store.NewPostgresQRHistoryStore(db)
		auditDB = db
		log.Info("using postgres stores")
	} else {
		contexts = store.NewInMemoryContextStore()
		identities = store.NewInMemoryIdentityStore()
		qrHistory = store.NewInMemoryQRHistoryStore()
		log.Warn("no postgres DSN configured, using in-memory stores")
	}

	rdb, err := platformredis.New(cfg.RedisAddr)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		contexts = store.NewCachedContextStore(contexts, rdb.Client, cfg.ContextCacheTTL, log)
		log.Info("context cache enabled", "addr", cfg.RedisAddr)
	}

	auditStores := []audit.Store{}
	if auditDB != nil {
		auditStores = append(auditStores, audit.NewPostgresStore(auditDB))
	}
	if len(cfg.KafkaBrokers) > 0 {
		ks, err := audit.NewKafkaStore(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer ks.Close()
		auditStores = append(auditStores, ks)
		log.Info("audit kafka publisher enabled", "topic", cfg.KafkaTopic)
	}
	if len(auditStores) == 0 {
		auditStores = append(auditStores, audit.NewInMemoryStore())
		log.Warn("no durable audit store configured, trail is in-memory only")
	}
	recorder := audit.NewRecorder(log, auditStores, audit.WithDroppedHook(m.AuditDropped.Inc))
	defer recorder.Close()

	svc := service.New(service.Deps{
		Contexts:   contexts,
		Identities: identities,
		History:    qrHistory,
		Source:     identitysource.New(cfg.IdentitySourceURL, cfg.IdentitySourceTimeout),
		Codec:      crypto.NewCodec(cfg.EncryptionEnabled),
		QR:         qr.New(cfg.QRSize, cfg.QRWindow, cfg.QRMargin),
		Recorder:   recorder,
		Metrics:    m,
		Logger:     log,
	})

	router := handler.NewRouter(handler.New(svc, log), log)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gateway listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
