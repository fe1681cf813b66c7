package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/suPer8Hu/kb-chat/internal/chat"
	"github.com/suPer8Hu/kb-chat/internal/config"
	"github.com/suPer8Hu/kb-chat/internal/db"
	"github.com/suPer8Hu/kb-chat/internal/httpapi"
	"github.com/suPer8Hu/kb-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/kb-chat/internal/kb"
	"github.com/suPer8Hu/kb-chat/internal/logging"
	"github.com/suPer8Hu/kb-chat/internal/media"
	"github.com/suPer8Hu/kb-chat/internal/metrics"
	"github.com/suPer8Hu/kb-chat/internal/store/rabbitmq"
	"github.com/suPer8Hu/kb-chat/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(logging.Config{
		Level:    cfg.LogLevel,
		Encoding: "json",
		DevMode:  cfg.LogDev,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.LogDev {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	gdb := db.Connect(cfg.DBDSN)

	deps := handlers.Deps{
		DB:       gdb,
		Cfg:      cfg,
		Log:      log,
		Settings: config.NewInferenceStore(cfg.Inference),
	}

	// signed-URL cache (optional)
	var cache media.URLCache
	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rds.Ping(pingCtx); err != nil {
			log.Warnw("redis unavailable, signed URLs will not be cached", "addr", cfg.RedisAddr, "err", err)
		} else {
			cache = rds
			defer rds.Close()
		}
		cancel()
	}

	if cfg.S3Bucket != "" {
		store, err := media.NewS3Store(media.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatalw("blob store", "err", err)
		}
		deps.Resolver = media.NewResolver(store, media.ResolverOptions{
			TTL:           cfg.MediaURLTTL,
			MaxConcurrent: int64(cfg.MaxResolves),
			Cache:         cache,
			CheckOpen:     cfg.CheckOpenDocs,
			Logger:        log.WithField("component", "resolver"),
			Metrics:       m,
		})
		deps.Uploads = media.NewUploads(store, cfg.UploadURLTTL)
	} else {
		log.Warnw("S3_BUCKET not set, media routes disabled")
	}

	deps.ChatSvc = chat.NewService(chat.NewSessions(), newRegistry(cfg), chat.Options{
		DefaultProvider: cfg.AIProvider,
		InvokeTimeout:   cfg.InvokeTimeout,
		Logger:          log.WithField("component", "chat"),
		Metrics:         m,
	})

	if cfg.KBBaseURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalw("rabbit publisher", "err", err)
		}
		defer pub.Close()
		deps.KB = kb.NewService(kb.NewRepo(gdb), pub,
			kb.NewHTTPBackend(cfg.KBBaseURL, cfg.KBID, cfg.KBDataSourceID, cfg.KBServiceToken),
			kb.Options{
				KnowledgeBaseID: cfg.KBID,
				DataSourceID:    cfg.KBDataSourceID,
				Logger:          log.WithField("component", "kb"),
				Metrics:         m,
			})
	} else {
		log.Warnw("KB_BASE_URL not set, ingestion routes disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(deps, m, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infow("server started", "addr", cfg.HTTPAddr, "provider", cfg.AIProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("listen", "err", err)
		}
	}()

	<-ctx.Done()
	log.Infow("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("shutdown", "err", err)
	}
}
