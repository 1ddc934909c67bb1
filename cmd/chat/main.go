// chat - terminal front-end for a command-executing agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/agentchat/internal/agentapi"
	"github.com/ashureev/agentchat/internal/agentapi/agentapitest"
	"github.com/ashureev/agentchat/internal/config"
	"github.com/ashureev/agentchat/internal/console"
	"github.com/ashureev/agentchat/internal/store"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// options are the inputs of one console run.
type options struct {
	fakeAgent bool
	pageID    string
	in        io.Reader
	out       io.Writer
	logger    *slog.Logger
}

func main() {
	fakeAgent := flag.Bool("fake-agent", false, "talk to a built-in echo agent instead of AGENT_API_URL")
	flag.Parse()

	// Logs go to stderr so they never interleave with the conversation.
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}
	if value, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if err := level.UnmarshalText([]byte(value)); err != nil {
			slog.Warn("Invalid LOG_LEVEL, using warn", "value", value)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, options{
		fakeAgent: *fakeAgent,
		pageID:    uuid.NewString(),
		in:        os.Stdin,
		out:       os.Stdout,
		logger:    logger,
	})
	if err != nil {
		slog.Error("Console stopped", "error", err)
		stop()
		os.Exit(1)
	}
}

// run drives one console session. Every resource it opens is released
// before it returns, including on error, so recorded transcripts are
// flushed.
func run(ctx context.Context, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	agentURL := cfg.AgentAPIURL
	if opts.fakeAgent {
		srv := agentapitest.New().NewServer()
		defer srv.Close()
		agentURL = srv.URL
	}
	client, err := agentapi.NewClient(agentURL, nil, opts.logger)
	if err != nil {
		return fmt.Errorf("initialize agent client: %w", err)
	}

	con := console.New(client, opts.in, opts.out, opts.logger)

	if cfg.Transcript.Enabled {
		repo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()

		recorder := store.NewRecorder(repo, cfg.Transcript.QueueSize, opts.logger)
		defer func() {
			if closeErr := recorder.Close(); closeErr != nil {
				slog.Error("Failed to flush transcripts", "error", closeErr)
			}
		}()

		recorder.OpenPage(opts.pageID, "console")
		defer recorder.ClosePage(opts.pageID)
		con.Log().AddSink(recorder.Sink(opts.pageID))
		con.Controller().OnSessionStarted(func(sessionID string) {
			recorder.SetAgentSession(opts.pageID, sessionID)
		})
		slog.Info("Recording transcript", "page_id", opts.pageID, "path", cfg.DBPath)
	}

	return con.Run(ctx)
}
