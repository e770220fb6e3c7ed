package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/med_assist/internal/config"
	"github.com/Skotchmaster/med_assist/internal/db"
	"github.com/Skotchmaster/med_assist/internal/events"
	"github.com/Skotchmaster/med_assist/internal/handlers"
	"github.com/Skotchmaster/med_assist/internal/hash"
	"github.com/Skotchmaster/med_assist/internal/logging"
	authmw "github.com/Skotchmaster/med_assist/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/med_assist/internal/middleware/logging"
	"github.com/Skotchmaster/med_assist/internal/models"
	"github.com/Skotchmaster/med_assist/internal/repo"
	"github.com/Skotchmaster/med_assist/internal/search"
	"github.com/Skotchmaster/med_assist/internal/service"
	"github.com/Skotchmaster/med_assist/internal/tokens"
	httpserver "github.com/Skotchmaster/med_assist/internal/transport/http"
	"github.com/Skotchmaster/med_assist/internal/validate"
)

// ledger is what both revocation backends provide.
type ledger interface {
	Revoke(ctx context.Context, jti, tokenType string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Prune(ctx context.Context, now time.Time) (int64, error)
}

func main() {
	cfg := config.MustLoad()

	log := logging.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting", "env", cfg.Env, "addr", cfg.HTTPServer.Address)

	ctx := context.Background()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal(log, "db_init_failed", err)
	}

	var (
		revocations ledger
		redisLedger *repo.RedisLedger
	)
	switch cfg.Revocation.Backend {
	case "redis":
		redisLedger, err = repo.NewRedisLedger(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			fatal(log, "redis_init_failed", err)
		}
		revocations = redisLedger
	default:
		revocations = repo.NewRevocationRepo(gdb)
	}

	hasher, err := hash.New(cfg.Hash.Algorithm, cfg.Hash.BcryptCost)
	if err != nil {
		fatal(log, "hasher_init_failed", err)
	}

	tm, err := tokens.New(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, revocations)
	if err != nil {
		fatal(log, "token_manager_init_failed", err)
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		prod, err := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			fatal(log, "kafka_init_failed", err)
		}
		pub = prod
	}

	var (
		indexer  search.Indexer
		searcher service.Searcher
	)
	if cfg.Elastic.URL != "" {
		es, err := search.NewClient(ctx, cfg.Elastic.URL, cfg.Elastic.User, cfg.Elastic.Password, cfg.Elastic.Index)
		if err != nil {
			fatal(log, "es_init_failed", err)
		}
		if err := es.EnsureIndex(ctx); err != nil {
			fatal(log, "es_index_failed", err)
		}
		indexer, searcher = es, es
	}

	v := validate.New()
	accounts := repo.NewAccountRepo(gdb)
	authSvc := service.NewAuthService(accounts, hasher, tm, revocations, v, pub)
	infoSvc := service.NewUserInfoService(repo.NewUserInfoRepo(gdb), v)

	symptoms := service.NewRecordService[models.Symptom](
		"symptom", "Symptom", repo.NewRecordRepo[models.Symptom](gdb, "recorded_on DESC, id DESC"), v, indexer, pub)
	foodLogs := service.NewRecordService[models.FoodLog](
		"foodlog", "Foodlog", repo.NewRecordRepo[models.FoodLog](gdb, "recorded_on DESC, id DESC"), v, indexer, pub)
	labs := service.NewRecordService[models.Lab](
		"lab", "Lab entry", repo.NewRecordRepo[models.Lab](gdb, "recorded_on DESC, id DESC"), v, indexer, pub)
	treatments := service.NewRecordService[models.Treatment](
		"treatment", "Treatment", repo.NewRecordRepo[models.Treatment](gdb, "id DESC"), v, indexer, pub)

	sqlDB, err := gdb.DB()
	if err != nil {
		fatal(log, "db_handle_failed", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(log))

	deps := httpserver.Deps{
		Validator:     v,
		AuthMW:        authmw.New(tm),
		Accounts:      authSvc,
		DB:            sqlDB,
		AuthHandler:   handlers.NewAuthHandler(authSvc),
		UserHandler:   handlers.NewUserHandler(authSvc, infoSvc),
		SearchHandler: handlers.NewSearchHandler(service.NewSearchService(searcher)),
		Symptoms:      handlers.NewRecordHandler[models.Symptom](symptoms, "symptom"),
		FoodLogs:      handlers.NewRecordHandler[models.FoodLog](foodLogs, "foodlog"),
		Labs:          handlers.NewRecordHandler[models.Lab](labs, "lab"),
		Treatments:    handlers.NewRecordHandler[models.Treatment](treatments, "treatment"),
		LoginLimit:    cfg.RateLimit.Login,
		RegisterLimit: cfg.RateLimit.Register,
	}

	httpserver.Register(e, &deps)

	jctx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	if cfg.Revocation.PruneInterval > 0 {
		go pruneRevocations(jctx, log, revocations, cfg.Revocation.PruneInterval)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      e,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout + 5*time.Second,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_server_error", logging.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	go func() {
		<-quit
		log.Warn("force_exit")
		os.Exit(1)
	}()

	log.Info("shutting_down")
	stopJanitor()

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Error("server_shutdown_error", logging.Err(err))
	}

	if err := db.Close(gdb); err != nil {
		log.Error("db_close_error", logging.Err(err))
	}

	if err := pub.Close(); err != nil {
		log.Error("kafka_close_error", logging.Err(err))
	}

	if redisLedger != nil {
		if err := redisLedger.Close(); err != nil {
			log.Error("redis_close_error", logging.Err(err))
		}
	}

	log.Info("shutdown_complete")
}

// pruneRevocations drops ledger rows whose tokens have expired on their own.
func pruneRevocations(ctx context.Context, log *slog.Logger, l ledger, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := l.Prune(ctx, now)
			if err != nil {
				log.Error("revocation_prune_failed", logging.Err(err))
				continue
			}
			if n > 0 {
				log.Info("revocation_pruned", "rows", n)
			}
		}
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, logging.Err(err))
	os.Exit(1)
}
