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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tradexpert/whatsnew-admin/handlers"
	"github.com/tradexpert/whatsnew-admin/internal/archive"
	"github.com/tradexpert/whatsnew-admin/internal/config"
	"github.com/tradexpert/whatsnew-admin/internal/database"
	draftshandler "github.com/tradexpert/whatsnew-admin/internal/drafts/handler"
	"github.com/tradexpert/whatsnew-admin/internal/drafts/repository"
	"github.com/tradexpert/whatsnew-admin/internal/drafts/service"
	"github.com/tradexpert/whatsnew-admin/internal/newsfeed"
	"github.com/tradexpert/whatsnew-admin/internal/oidc"
	"github.com/tradexpert/whatsnew-admin/internal/submissions"
	"github.com/tradexpert/whatsnew-admin/internal/upstream"
	"github.com/tradexpert/whatsnew-admin/pkg/logger"
	"github.com/tradexpert/whatsnew-admin/pkg/metrics"
	"github.com/tradexpert/whatsnew-admin/pkg/middleware"
)

var startTime = time.Now()

// app holds the runtime dependencies the router is built from. Optional
// backends are nil when not configured or unreachable.
type app struct {
	cfg        *config.Config
	redis      *redis.Client
	mongo      *mongo.Client
	verifier   middleware.Verifier
	drafts     repository.Repository
	draftStore string
	subs       submissions.Store
	archiver   service.Archiver
	snapshots  handlers.SnapshotLoader
	records    *upstream.Client
	feeds      draftshandler.FeedFetcher
}

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.SetFormat(cfg.Server.LogFormat)
	logger.Infof("config loaded: upstream=%s keycloak=%v mongo=%v redis=%v minio=%v drafts=%s",
		cfg.Upstream.BaseURL, cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", cfg.Drafts.Store)

	ctx := context.Background()
	a := &app{cfg: cfg}

	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
		} else {
			logger.Infof("connected to Redis: %s", addr)
			a.redis = client
		}
	}

	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			a.mongo = client
		}
	}

	ver, err := oidc.FromConfig(ctx, cfg.Keycloak)
	switch {
	case err == nil:
		a.verifier = ver
		if _, insecure := ver.(*oidc.InsecureVerifier); insecure {
			logger.Warn("enabling insecure OIDC verifier (integration mode)")
		}
	case errors.Is(err, oidc.ErrNotConfigured):
		logger.Warn("Keycloak not configured; /api is unauthenticated")
	default:
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	}

	a.drafts, a.draftStore = selectDraftRepo(ctx, cfg, a.redis, a.mongo)
	logger.Infof("draft store: %s", a.draftStore)

	if a.mongo != nil {
		a.subs = submissions.NewMongoStore(a.mongo.Database(cfg.MongoDB.Database).Collection("submissions"))
	} else {
		a.subs = submissions.NewMemoryStore(500)
	}

	if cfg.MinIO.Endpoint != "" {
		arc, err := archive.NewMinIOArchive(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("snapshot archive disabled: %v", err)
		} else {
			a.archiver, a.snapshots = arc, arc
		}
	}

	a.records = upstream.NewClient(cfg.Upstream, nil)
	a.feeds = newsfeed.NewFetcher(nil, cfg.News.FetchTimeout)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r := newRouter(a)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	go func() {
		logger.Infof("starting whatsnew-admin on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()
	<-done

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// selectDraftRepo picks the configured draft backend, falling back to memory
// when the backend is unavailable.
func selectDraftRepo(ctx context.Context, cfg *config.Config, rdb *redis.Client, mc *mongo.Client) (repository.Repository, string) {
	switch cfg.Drafts.Store {
	case "redis":
		if rdb != nil {
			return repository.NewRedisRepo(rdb, "draft:"), "redis"
		}
		logger.Warn("DRAFT_STORE=redis but Redis is unavailable; using memory")
	case "mongo":
		if mc != nil {
			col := mc.Database(cfg.MongoDB.Database).Collection("drafts")
			return repository.NewMongoRepo(ctx, col), "mongo"
		}
		logger.Warn("DRAFT_STORE=mongo but MongoDB is unavailable; using memory")
	}
	return repository.NewMemoryRepo(), "memory"
}

func newRouter(a *app) *gin.Engine {
	cfg := a.cfg
	r := gin.New()

	// permissive CORS for the admin UI
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})
	r.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{
			"drafts":   a.drafts != nil,
			"upstream": cfg.Upstream.BaseURL != "",
		}
		if cfg.Keycloak.URL != "" {
			deps["oidc"] = a.verifier != nil
		}
		if cfg.Redis.Host != "" && (cfg.RateLimit.UseRedis || cfg.Drafts.Store == "redis") {
			deps["redis"] = a.redis != nil
		}
		if cfg.MongoDB.URI != "" {
			deps["mongo"] = a.mongo != nil
		}
		for _, ok := range deps {
			ready = ready && ok
		}
		body := gin.H{"deps": deps, "draftStore": a.draftStore, "uptime": time.Since(startTime).String()}
		if !ready {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})

	handlers.RegisterLanding(r, handlers.LandingLinks{Add: cfg.Server.AddScreenURL, Manage: cfg.Server.ManageScreenURL})
	handlers.RegisterSwagger(r)

	api := r.Group("/api")
	if a.verifier != nil {
		api.Use(middleware.AuthMiddleware(a.verifier), middleware.RequireRole(cfg.Keycloak.AdminRole))
	}
	// limiter runs after auth so authenticated callers are keyed by subject
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			api.Use(middleware.RedisRateLimitMiddleware(a.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			api.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	svc := service.New(a.drafts, a.records, service.Options{
		TTL:          cfg.Drafts.TTL,
		HistoryLimit: cfg.Drafts.HistoryLimit,
		Archiver:     a.archiver,
		Recorder:     a.subs,
	})
	draftshandler.RegisterDraftRoutes(api, svc, a.feeds, draftshandler.NewsDefaults{
		Feeds: cfg.News.Feeds,
		Limit: cfg.News.Limit,
	})
	handlers.NewWhatsNewHandler(a.records, svc, a.subs, a.snapshots).Register(api)

	return r
}
