package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/swastha-auth/config"
	"github.com/oksasatya/swastha-auth/internal/application"
	"github.com/oksasatya/swastha-auth/internal/container"
	pginfra "github.com/oksasatya/swastha-auth/internal/infrastructure/postgres"
	"github.com/oksasatya/swastha-auth/internal/infrastructure/search"
	"github.com/oksasatya/swastha-auth/internal/interface/middleware"
	"github.com/oksasatya/swastha-auth/internal/router"
	"github.com/oksasatya/swastha-auth/pkg/helpers"
	"github.com/oksasatya/swastha-auth/pkg/mailer"
	"github.com/oksasatya/swastha-auth/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	// Postgres
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		MaxConnLife: cfg.DBMaxConnLife,
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	// Redis backs the login rate window and the sessions; refuse to start without it.
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()
	if err := helpers.PingRedis(ctx, rdb); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	// Elasticsearch audit mirror (optional)
	var index *search.AuditIndex
	es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		logger.WithError(err).Warn("elasticsearch unavailable; audit search disabled")
	} else if es != nil {
		index = search.NewAuditIndex(es, cfg.ESAuditIndex)
		if err := index.EnsureIndex(ctx); err != nil {
			logger.WithError(err).Warn("audit index mapping unavailable; audit search disabled")
			index = nil
		} else {
			container.SetES(es)
			container.SetSearcher(index)
		}
	}

	audit := application.NewAuditRecorder(pginfra.NewAuditRepository(pool), indexerOrNil(index), logger, cfg.AuditBufferSize)

	notifier, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer closeNotifier()

	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	container.SetRedis(rdb)
	container.SetJWT(helpers.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL))
	container.SetNotifier(notifier)
	container.SetAudit(audit)

	// Gin engine and global middleware
	r := gin.New()
	// Forwarding headers are only honoured by RealIP when TRUST_PROXY_HEADERS is set.
	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Fatalf("trusted proxies: %v", err)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r, "/api")
	reg.Use(middleware.RealIP(cfg.TrustProxyHeaders))
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}
	audit.Close()
	logger.Info("server exited properly")
}

// indexerOrNil keeps a nil *AuditIndex from becoming a non-nil interface.
func indexerOrNil(idx *search.AuditIndex) application.AuditIndexer {
	if idx == nil {
		return nil
	}
	return idx
}

// buildNotifier publishes reset emails to RabbitMQ. Messages are only logged
// when MAIL_SEND_ENABLED=false; an unreachable broker is an error.
func buildNotifier(cfg *config.Config, logger *logrus.Logger) (application.Notifier, func(), error) {
	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; emails will be logged only")
		return &mailer.LogNotifier{Logger: logger, Verbose: cfg.Env == "development"}, func() {}, nil
	}
	q, err := helpers.NewRabbitQueue(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
	if err != nil {
		return nil, nil, err
	}
	return mailer.NewQueueNotifier(q), q.Close, nil
}
