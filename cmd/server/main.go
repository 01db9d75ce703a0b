package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/conquest/internal/actionlog"
	"github.com/freeeve/conquest/internal/auth"
	"github.com/freeeve/conquest/internal/config"
	"github.com/freeeve/conquest/internal/handler"
	"github.com/freeeve/conquest/internal/logger"
	"github.com/freeeve/conquest/internal/middleware"
	"github.com/freeeve/conquest/internal/repository/postgres"
	redisrepo "github.com/freeeve/conquest/internal/repository/redis"
	"github.com/freeeve/conquest/internal/service"
	"github.com/freeeve/conquest/internal/session"
	"github.com/freeeve/conquest/pkg/conquest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Dev: cfg.DevMode})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	board, err := loadBoard(cfg.BoardPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.BoardPath).Msg("Board load failed")
	}
	log.Info().Str("board", board.Name).Int("territories", len(board.Territories)).Msg("Board loaded")

	// Database
	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	archive := actionlog.NewWriter(cfg.ActionArchiveDir)
	defer archive.Close()

	// Repos
	userRepo := postgres.NewUserRepo(db)
	gameRepo := postgres.NewGameRepo(db)
	stateRepo := postgres.NewStateRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	googleOAuth := auth.NewGoogleOAuth(cfg.Google)

	// WebSocket hub doubles as the broadcaster for sessions and the lobby.
	wsHub := handler.NewHub()

	sessions := session.NewManager(session.Deps{
		Cache:           redisClient,
		States:          stateRepo,
		Games:           gameRepo,
		Archive:         archive,
		Broadcaster:     wsHub,
		DefaultStrategy: cfg.AIStrategy,
		MaxAISteps:      cfg.AIMaxSteps,
	})
	defer sessions.Stop()

	gameSvc := service.NewGameService(gameRepo, userRepo, stateRepo, sessions, board, cfg.BidDeadline, wsHub)
	timerListener := service.NewTimerListener(redisClient.Underlying(), sessions)

	// Handlers
	authHandler := handler.NewAuthHandler(googleOAuth, jwtMgr, userRepo, cfg.DevMode)
	userHandler := handler.NewUserHandler(userRepo)
	gameHandler := handler.NewGameHandler(gameSvc)
	actionHandler := handler.NewActionHandler(gameSvc)
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr, gameSvc)
	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"postgres": db,
		"redis":    redisClient,
	}, sessions.Loaded)

	// Router
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)

	mux.HandleFunc("GET /healthz", healthHandler.Health)

	// Auth (public)
	mux.HandleFunc("GET /auth/google/login", authHandler.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", authHandler.GoogleCallback)
	mux.HandleFunc("POST /auth/refresh", authHandler.RefreshToken)
	mux.HandleFunc("GET /auth/dev", authHandler.DevLogin)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /users/me", userHandler.GetMe)
	api.HandleFunc("PATCH /users/me", userHandler.UpdateMe)
	api.HandleFunc("GET /users/{id}", userHandler.GetUser)
	api.HandleFunc("POST /games", gameHandler.CreateGame)
	api.HandleFunc("GET /games", gameHandler.ListGames)
	api.HandleFunc("GET /games/{id}", gameHandler.GetGame)
	api.HandleFunc("POST /games/{id}/join", gameHandler.JoinGame)
	api.HandleFunc("POST /games/{id}/bots", gameHandler.AddBot)
	api.HandleFunc("POST /games/{id}/start", gameHandler.StartGame)
	api.HandleFunc("DELETE /games/{id}", gameHandler.DeleteGame)
	api.HandleFunc("GET /games/{id}/state", actionHandler.GetState)
	api.HandleFunc("POST /games/{id}/actions", actionHandler.SubmitAction)
	api.HandleFunc("GET /games/{id}/actions", actionHandler.ListActions)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", authMw(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS("*"), limiter.Middleware, middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Bring back the sessions of games that were running before a restart.
	if n, err := sessions.RecoverActiveGames(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to recover active games (non-fatal)")
	} else {
		log.Info().Int("games", n).Msg("Active games recovered")
	}

	go timerListener.Start(ctx)
	go limiter.RunSweeper(ctx, time.Minute, 10*time.Minute)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}

// loadBoard reads a YAML board from path, or the embedded standard board
// when path is empty.
func loadBoard(path string) (*conquest.Board, error) {
	if path == "" {
		return conquest.DefaultBoard(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return conquest.LoadBoard(f)
}
