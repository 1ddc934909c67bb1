package webchat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/ashureev/agentchat/internal/chat"
	"github.com/ashureev/agentchat/internal/transcript"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// InitialMessage is the first log entry of every page.
const InitialMessage = "UI Initialized. Enter your query and click Send."

// Recorder receives the audit trail of each page.
type Recorder interface {
	OpenPage(pageID, frontend string)
	SetAgentSession(pageID, sessionID string)
	ClosePage(pageID string)
	Sink(pageID string) transcript.Sink
}

// Handler upgrades page connections and runs one chat controller per page.
type Handler struct {
	agent         chat.Agent
	pages         *PageRegistry
	recorder      Recorder
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewHandler creates a new chat websocket handler.
func NewHandler(agent chat.Agent, pages *PageRegistry, allowedOrigin string, isDev bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		agent:         agent,
		pages:         pages,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// SetRecorder enables the transcript audit trail.
func (h *Handler) SetRecorder(rec Recorder) {
	h.recorder = rec
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err)
		return
	}

	pageID := uuid.NewString()
	logger := h.logger.With("page_id", pageID)
	logger.Info("Chat page connected", "ip", r.RemoteAddr)

	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "page closed"); closeErr != nil {
			logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	h.pages.Register(pageID, ws)
	defer h.pages.Unregister(pageID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	p := &page{id: pageID, conn: ws, logger: logger}
	prompt := newPrompter(p.send)
	log := transcript.New(p, transcript.SlogSink{Logger: logger})

	ctrl := chat.NewController(h.agent, prompt, p, log, logger)
	if h.recorder != nil {
		h.recorder.OpenPage(pageID, "web")
		defer h.recorder.ClosePage(pageID)
		log.AddSink(h.recorder.Sink(pageID))
		ctrl.OnSessionStarted(func(sessionID string) {
			h.recorder.SetAgentSession(pageID, sessionID)
		})
	}

	p.push(serverMessage{Type: "ready", PageID: pageID})
	log.Append(transcript.CategoryStatus, InitialMessage)
	p.SetSubmitEnabled(true)

	// At most one turn is queued or running; busy guards the channel.
	var busy atomic.Bool
	turns := make(chan string, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for query := range turns {
			ctrl.SendMessage(ctx, query)
			busy.Store(false)
		}
	}()

	h.readLoop(ctx, ws, p, prompt, &busy, turns)

	cancel()
	close(turns)
	wg.Wait()
	logger.Info("Chat page ended")
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, p *page, prompt *prompter, busy *atomic.Bool, turns chan<- string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				p.logger.Debug("WebSocket closed by page")
			} else {
				p.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			p.logger.Debug("Ignoring malformed page message", "error", err)
			continue
		}

		switch msg.Type {
		case "send":
			if !busy.CompareAndSwap(false, true) {
				p.logger.Debug("Ignoring send while a turn is in flight")
				continue
			}
			turns <- msg.Content
		case "confirm_reply":
			if !prompt.resolve(msg.ID, msg.Approved) {
				p.logger.Debug("Dropping stale confirmation reply", "id", msg.ID)
			}
		case "ping":
			p.push(serverMessage{Type: "pong"})
		default:
			p.logger.Debug("Unknown page message type", "type", msg.Type)
		}
	}
}
