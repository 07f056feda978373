package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/config"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/dataset"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/handler"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/planner"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/roadnet"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	// Dataset database.
	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
	if err != nil {
		log.Fatal("unable to parse database URL", zap.Error(err))
	}
	poolCfg.MaxConns = cfg.Postgres.MaxConns
	poolCfg.MinConns = cfg.Postgres.MinConns
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatal("unable to create connection pool", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal("unable to connect to database", zap.Error(err))
	}
	log.Info("connected to dataset database")

	// Load and seal the routing dataset. Invariant violations are fatal here
	// and never raised mid-query.
	loader := dataset.NewLoader(pool, log)
	data, err := loader.Load(ctx)
	if err != nil {
		log.Fatal("failed to load routing dataset", zap.Error(err))
	}

	// Optional process-wide road-distance cache.
	var rdb *redis.Client
	opts := []planner.Option{planner.WithMaxRounds(cfg.Planner.MaxRounds)}
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unreachable, continuing without shared cache", zap.Error(err))
			rdb = nil
		} else {
			opts = append(opts, planner.WithSecondLevel(roadnet.NewRedisCache(rdb, cfg.Redis.CacheTTL)))
			log.Info("road-distance cache connected")
		}
	}
	if rdb != nil {
		defer rdb.Close()
	}

	pl := planner.New(data, log, opts...)
	plannerHandler := handler.NewPlannerHandler(data, pl, log)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"gangnam_multimodal_routing"}`))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"error","db":"disconnected"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","db":"connected"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/plan", plannerHandler.Plan)
		r.Get("/stops", plannerHandler.Stops)
		r.Get("/stops/{id}", plannerHandler.StopDetails)
		r.Get("/routes", plannerHandler.Routes)
		r.Get("/routes/{id}", plannerHandler.RouteDetails)
		r.Get("/vehicles", plannerHandler.Vehicles)
	})

	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("server starting", zap.String("addr", cfg.Server.ServerAddr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
