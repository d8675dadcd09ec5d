package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itpetinwtbap/quiz/config"
	"github.com/itpetinwtbap/quiz/handlers"
	"github.com/itpetinwtbap/quiz/middleware"
	"github.com/itpetinwtbap/quiz/routes"
	"github.com/itpetinwtbap/quiz/services"
	"github.com/itpetinwtbap/quiz/store"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := config.Load()
	config.SetupLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	st := store.NewGormStore(db)
	if err := st.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	clock := clockwork.NewRealClock()
	registry := services.NewRoomRegistry(clock)
	defer registry.Close()
	timer := services.NewMatchTimer(clock)
	broadcaster := services.NewBroadcaster(registry)
	syncService := services.NewSyncService(st, registry, timer, broadcaster, cfg.PersistTimeout)
	tokens := services.NewConnTokens(cfg.ConnectionTokenSecret, cfg.ConnectionTokenTTL, clock)

	hubConfig := services.DefaultHubConfig()
	hubConfig.CheckOrigin = originChecker(cfg.AllowedOrigins)
	hub := services.NewHub(syncService, tokens, hubConfig)
	broadcaster.SetSender(hub)
	go hub.Run(ctx)

	if cfg.RedisEnabled {
		redisClient := config.InitRedis(cfg)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		relay := services.NewRedisRelay(redisClient)
		broadcaster.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx, broadcaster.DeliverRemote); err != nil {
				log.Error().Err(err).Msg("redis relay stopped")
			}
		}()
	} else {
		// Without the relay this is the only instance, so a row with no local
		// attachment really is orphaned.
		sweeper := services.NewSessionSweeper(st, registry, clock, cfg.SessionSweepInterval, cfg.SessionStaleAfter)
		if err := sweeper.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start session sweeper")
		}
		defer sweeper.Stop()
	}

	matchService := services.NewMatchService(st, timer, cfg.DefaultTimeLimit)
	packageService := services.NewPackageService(st, timer)

	matchHandler := handlers.NewMatchHandler(matchService, syncService)
	packageHandler := handlers.NewPackageHandler(packageService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	routes.SetupRoutes(router, matchHandler, packageHandler, hub, registry)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           h2c.NewHandler(c.Handler(router), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Bool("redis", cfg.RedisEnabled).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
