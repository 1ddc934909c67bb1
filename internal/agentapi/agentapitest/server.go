// Package agentapitest provides a scripted fake of the agent API for tests
// and local development.
package agentapitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/ashureev/agentchat/internal/agentapi"
)

// Reply is one canned answer. Status defaults to 200.
type Reply struct {
	HTTPStatus int
	Body       any
}

// Turn wraps a turn response in a 200 reply.
func Turn(status agentapi.Status, response, command string) Reply {
	return Reply{Body: agentapi.TurnResponse{
		Status:           status,
		Response:         response,
		CommandToConfirm: command,
	}}
}

// Fail builds a non-2xx reply carrying a FastAPI-style detail.
func Fail(status int, detail string) Reply {
	return Reply{HTTPStatus: status, Body: map[string]string{"detail": detail}}
}

// Request is a recorded chat call.
type Request struct {
	SessionID string
	Turn      agentapi.TurnRequest
	RawBody   string
}

// Agent is a fake agent backend. Start replies and chat replies are consumed
// in order; when a queue is empty the fallback is used.
type Agent struct {
	mu           sync.Mutex
	startReplies []Reply
	chatReplies  []Reply
	fallback     func(agentapi.TurnRequest) Reply
	starts       int
	requests     []Request
	nextSession  int
}

// New creates a fake agent. Without scripted replies, starts succeed with
// session ids "session-1", "session-2", ... and chats echo the query.
func New() *Agent {
	return &Agent{fallback: Echo}
}

// Echo completes every turn by echoing what it received.
func Echo(req agentapi.TurnRequest) Reply {
	if req.ConfirmedCommand != nil {
		return Turn(agentapi.StatusCompleted, "executed: "+*req.ConfirmedCommand, "")
	}
	if req.UserQuery != nil {
		return Turn(agentapi.StatusCompleted, "echo: "+*req.UserQuery, "")
	}
	return Fail(http.StatusBadRequest, "Request must contain either 'user_query' or 'confirmed_command'")
}

// QueueStart scripts the next start_conversation replies.
func (a *Agent) QueueStart(replies ...Reply) *Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startReplies = append(a.startReplies, replies...)
	return a
}

// QueueChat scripts the next chat replies.
func (a *Agent) QueueChat(replies ...Reply) *Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chatReplies = append(a.chatReplies, replies...)
	return a
}

// SetFallback replaces the reply used once the chat queue is drained.
func (a *Agent) SetFallback(fn func(agentapi.TurnRequest) Reply) *Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fallback = fn
	return a
}

// Starts returns the number of start_conversation calls received.
func (a *Agent) Starts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts
}

// Requests returns a copy of the recorded chat calls.
func (a *Agent) Requests() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Request, len(a.requests))
	copy(out, a.requests)
	return out
}

// Handler returns the HTTP handler serving the fake API.
func (a *Agent) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /start_conversation", a.handleStart)
	mux.HandleFunc("POST /chat/{session_id}", a.handleChat)
	return mux
}

// NewServer starts an httptest server for the agent. Callers must Close it.
func (a *Agent) NewServer() *httptest.Server {
	return httptest.NewServer(a.Handler())
}

func (a *Agent) handleStart(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	a.starts++
	var reply Reply
	if len(a.startReplies) > 0 {
		reply = a.startReplies[0]
		a.startReplies = a.startReplies[1:]
	} else {
		a.nextSession++
		reply = Reply{Body: map[string]string{"session_id": "session-" + strconv.Itoa(a.nextSession)}}
	}
	a.mu.Unlock()

	write(w, reply)
}

func (a *Agent) handleChat(w http.ResponseWriter, r *http.Request) {
	var raw strings.Builder
	var turn agentapi.TurnRequest
	if err := json.NewDecoder(teeBody(r, &raw)).Decode(&turn); err != nil {
		write(w, Fail(http.StatusUnprocessableEntity, "invalid body"))
		return
	}

	a.mu.Lock()
	a.requests = append(a.requests, Request{
		SessionID: r.PathValue("session_id"),
		Turn:      turn,
		RawBody:   strings.TrimSpace(raw.String()),
	})
	var reply Reply
	if len(a.chatReplies) > 0 {
		reply = a.chatReplies[0]
		a.chatReplies = a.chatReplies[1:]
	} else {
		reply = a.fallback(turn)
	}
	a.mu.Unlock()

	write(w, reply)
}

func write(w http.ResponseWriter, reply Reply) {
	status := reply.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if raw, ok := reply.Body.(string); ok {
		_, _ = w.Write([]byte(raw))
		return
	}
	_ = json.NewEncoder(w).Encode(reply.Body)
}

func teeBody(r *http.Request, w io.Writer) io.Reader {
	return io.TeeReader(r.Body, w)
}
