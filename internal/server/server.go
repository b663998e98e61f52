// Package server wires the configuration, storage, services and routes
// into one runnable HTTP server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gameshelf/apiserver/config"
	"github.com/gameshelf/apiserver/internal/catalog"
	"github.com/gameshelf/apiserver/internal/db"
	"github.com/gameshelf/apiserver/internal/directory"
	"github.com/gameshelf/apiserver/internal/handlers"
	"github.com/gameshelf/apiserver/internal/logging"
	"github.com/gameshelf/apiserver/internal/metrics"
	appmw "github.com/gameshelf/apiserver/internal/middleware"
	"github.com/gameshelf/apiserver/internal/mq"
	"github.com/gameshelf/apiserver/internal/services"
	"github.com/gameshelf/apiserver/internal/storage"
	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server, router and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	redis      *redis.Client
	limiter    *appmw.RateLimiter

	cancelBackground context.CancelFunc
}

// New constructs a Server from config: opens the database, selects the
// directory and optional backends, wires services and routes, and starts
// the deletion reconciler.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := logging.New(cfg.LogLevel)

	jwtSecret := strings.TrimSpace(cfg.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	moderationRepo := store.NewModerationRepository(dbConn)
	activityRepo := store.NewActivityRepository(dbConn)
	followRepo := store.NewFollowRepository(dbConn)
	listRepo := store.NewGameListRepository(dbConn)
	gameRepo := store.NewGameRepository(dbConn)
	outboxRepo := store.NewOutboxRepository(dbConn)
	statsRepo := store.NewStatsRepository(dbConn)

	dir, err := buildDirectory(cfg, userRepo)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	collector := metrics.NewCollector()

	var broker *mq.MQ
	var events services.EventPublisher
	if backend, err := buildBroker(ctx, cfg); err != nil {
		log.Warn("message broker unavailable, event fan-out disabled", "error", err)
	} else if backend != nil {
		broker = mq.New(backend)
		events = broker
	}

	var rdb *redis.Client
	var source catalog.Source = catalog.Unavailable{}
	if cfg.Catalog.ClientID != "" && cfg.Catalog.ClientSecret != "" {
		client, err := catalog.NewClient(cfg.Catalog)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		source = client
		if cfg.Redis.Addr != "" {
			rdb = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			ttl := time.Duration(cfg.Catalog.CacheTTLSec) * time.Second
			source = catalog.NewCachedSource(client, rdb, ttl, collector, log)
		}
	} else {
		log.Warn("catalog credentials missing, live lookups disabled")
	}

	avatars, err := buildAvatarStore(ctx, cfg)
	if err != nil {
		log.Warn("object storage unavailable, avatar routes disabled", "error", err)
		avatars = nil
	}

	userService := services.NewUserService(userRepo, dir)
	moderationService := services.NewModerationService(userRepo, moderationRepo, outboxRepo, dir, events, collector, log)
	activityService := services.NewActivityService(activityRepo)
	followService := services.NewFollowService(followRepo, userRepo)
	listService := services.NewGameListService(listRepo, gameRepo, source)
	statsService := services.NewStatsService(statsRepo, activityRepo)

	guard := handlers.NewGuard(userRepo)
	limiter := appmw.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		limiter.Handler,
		appmw.Metrics(collector),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", collector.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, dir, jwtSecret)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, guard, jwtSecret, userService, followService, avatars)
	})
	router.Route("/lists", func(r chi.Router) {
		handlers.ListRouter(r, guard, jwtSecret, listService, userService)
	})
	router.Route("/games", func(r chi.Router) {
		handlers.GameRouter(r, guard, jwtSecret, source, gameRepo, activityService)
	})
	router.Route("/admin", func(r chi.Router) {
		r.Use(handlers.RequireAuth(jwtSecret))
		handlers.AdminRouter(r, guard, userService, moderationService, activityService, statsService)
	})

	bgCtx, cancel := context.WithCancel(context.Background())
	reconciler := worker.NewReconciler(outboxRepo, dir, collector, log, 0)
	go func() {
		reconciler.Drain(bgCtx)
		reconciler.Run(bgCtx)
	}()

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer:       httpServer,
		router:           router,
		db:               dbConn,
		broker:           broker,
		redis:            rdb,
		limiter:          limiter,
		cancelBackground: cancel,
	}, nil
}

func buildDirectory(cfg config.Config, users *store.UserRepository) (directory.UserDirectory, error) {
	switch cfg.Directory.Backend {
	case "", "local":
		return directory.NewLocalDirectory(users), nil
	case "remote":
		return directory.NewRemoteDirectory(cfg.Directory)
	default:
		return nil, fmt.Errorf("unknown directory backend %q", cfg.Directory.Backend)
	}
}

func buildBroker(ctx context.Context, cfg config.Config) (mq.Backend, error) {
	if cfg.RabbitMQ.URL != "" {
		return mq.NewRabbitMQClient(cfg.RabbitMQ)
	}
	if cfg.PubSub.ProjectID != "" {
		return mq.NewPubSubClient(ctx, cfg.PubSub)
	}
	return nil, nil
}

func buildAvatarStore(ctx context.Context, cfg config.Config) (*storage.AvatarStore, error) {
	var backend storage.ObjectStorage
	switch {
	case cfg.Minio.Endpoint != "":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case cfg.GCS.Bucket != "":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, nil
	}

	avatars := storage.NewAvatarStore(backend)
	if err := avatars.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return avatars, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and releases owned resources.
func (s *Server) Shutdown() error {
	s.cancelBackground()
	s.limiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)

	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
