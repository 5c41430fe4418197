// Package server implements the arena HTTP API: accounts, bots with
// versioned code, sandboxed test matches, and the public IPD leaderboard.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"
)

// Server wires the stores, the match runner, and the HTTP routes.
type Server struct {
	db     *gorm.DB
	logger *slog.Logger
	issuer *TokenIssuer
	runner Runner

	users   *UserStore
	bots    *BotStore
	matches *MatchStore
	duels   *DuelStore
	board   *Leaderboard
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRunner replaces the match runner (e.g. with a sandboxed one).
func WithRunner(r Runner) Option {
	return func(s *Server) { s.runner = r }
}

// New creates a server over db, signing tokens with secret.
func New(db *gorm.DB, secret []byte, opts ...Option) *Server {
	s := &Server{
		db:     db,
		logger: slog.Default(),
		issuer: NewTokenIssuer(secret),
		runner: NewEngineRunner(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.users = NewUserStore(db)
	s.bots = NewBotStore(db)
	s.matches = NewMatchStore(db)
	s.duels = NewDuelStore(db)
	s.board = NewLeaderboard(db, s.duels, s.runner)
	return s
}

// AutoMigrate creates or updates every table the server uses.
func (s *Server) AutoMigrate() error {
	for _, m := range []interface{ AutoMigrate() error }{s.users, s.bots, s.matches, s.duels} {
		if err := m.AutoMigrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// MountRoutes creates the HTTP router with all API routes mounted.
func (s *Server) MountRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/api/health", s.healthHandler)

	r.Post("/api/auth/register", s.registerHandler)
	r.Post("/api/auth/login", s.loginHandler)

	r.Get("/api/env/ipd/leaderboard", s.leaderboardHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/api/bots", s.listBotsHandler)
		r.Post("/api/bots", s.createBotHandler)
		r.Get("/api/bots/{botID}", s.getBotHandler)
		r.Delete("/api/bots/{botID}", s.deleteBotHandler)
		r.Post("/api/bots/{botID}/versions", s.createVersionHandler)
		r.Delete("/api/bots/{botID}/versions/{versionID}", s.deleteVersionHandler)
		r.Post("/api/bots/{botID}/active_version", s.setActiveHandler)
		r.Post("/api/bots/{botID}/run-test", s.runTestHandler)
		r.Post("/api/bots/{botID}/submit", s.submitHandler)
		r.Get("/api/matches/{matchID}", s.getMatchHandler)
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
