// agentchat - web chat front-end for a command-executing agent.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/agentchat/internal/agentapi"
	"github.com/ashureev/agentchat/internal/agentapi/agentapitest"
	"github.com/ashureev/agentchat/internal/api"
	"github.com/ashureev/agentchat/internal/config"
	"github.com/ashureev/agentchat/internal/middleware"
	"github.com/ashureev/agentchat/internal/store"
	"github.com/ashureev/agentchat/internal/webchat"
	"github.com/ashureev/agentchat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

const fakeAgentPrefix = "/_fake-agent"

func main() {
	fakeAgent := flag.Bool("fake-agent", false, "serve a built-in echo agent instead of calling AGENT_API_URL")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		slog.Warn("Invalid LOG_LEVEL, using info", "value", cfg.LogLevel)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Transcript audit trail (optional).
	var repo store.Repository
	var recorder *store.Recorder
	if cfg.Transcript.Enabled {
		sqlite, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := sqlite.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()

		if err := sqlite.Ping(ctx); err != nil {
			slog.Error("Database health check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Database connected", "path", cfg.DBPath)

		repo = sqlite
		recorder = store.NewRecorder(sqlite, cfg.Transcript.QueueSize, logger)
		store.StartRetentionWorker(ctx, sqlite, cfg.Transcript.Retention, store.RetentionInterval)
	} else {
		slog.Info("Transcript recording disabled")
	}

	agentURL := cfg.AgentAPIURL
	if *fakeAgent {
		agentURL = "http://127.0.0.1:" + cfg.Port + fakeAgentPrefix
		slog.Warn("Using built-in fake agent", "url", agentURL)
	}
	client, err := agentapi.NewClient(agentURL, nil, logger)
	if err != nil {
		slog.Error("Failed to initialize agent client", "error", err)
		os.Exit(1)
	}

	// Initialize handlers.
	pages := webchat.NewPageRegistry()
	wsHandler := webchat.NewHandler(client, pages, cfg.FrontendURL, cfg.IsDevelopment(), logger)
	if recorder != nil {
		wsHandler.SetRecorder(recorder)
	}
	apiHandler := api.NewHandler(repo, pages, client.BaseURL())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(allowedOrigins(cfg)))
		apiHandler.RegisterRoutes(r)
	})

	if *fakeAgent {
		r.Mount(fakeAgentPrefix, http.StripPrefix(fakeAgentPrefix, newFakeAgent().Handler()))
	}

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve the embedded chat page.
	r.Handle("/*", web.Handler())

	// No WriteTimeout: agent turns and websocket pages are long-lived.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Hijacked websocket connections are not tracked by Shutdown.
	pages.CloseAll("server shutting down")

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			slog.Error("Failed to flush transcripts", "error", err)
		}
		if dropped := recorder.Dropped(); dropped > 0 {
			slog.Warn("Transcript records dropped", "count", dropped)
		}
	}

	slog.Info("Server stopped successfully")
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}

// newFakeAgent echoes queries; "run <cmd>" asks for authorization of cmd
// so the confirmation flow can be tried locally.
func newFakeAgent() *agentapitest.Agent {
	return agentapitest.New().SetFallback(func(req agentapi.TurnRequest) agentapitest.Reply {
		if req.UserQuery != nil {
			if cmd, ok := strings.CutPrefix(strings.TrimSpace(*req.UserQuery), "run "); ok && cmd != "" {
				return agentapitest.Turn(agentapi.StatusConfirmationRequired, "", cmd)
			}
		}
		return agentapitest.Echo(req)
	})
}
