package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/agentchat/internal/chat"
	"github.com/ashureev/agentchat/internal/transcript"
	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// serverMessage is pushed from the server to the page.
type serverMessage struct {
	Type          string            `json:"type"`
	PageID        string            `json:"page_id,omitempty"`
	Content       string            `json:"content"`
	SubmitEnabled *bool             `json:"submit_enabled,omitempty"`
	Entry         *transcript.Entry `json:"entry,omitempty"`
	ID            int64             `json:"id,omitempty"`
	Command       string            `json:"command,omitempty"`
	Prompt        string            `json:"prompt,omitempty"`
}

// clientMessage is sent by the page.
type clientMessage struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	ID       int64  `json:"id,omitempty"`
	Approved bool   `json:"approved,omitempty"`
}

// page is the server side of one browser page. It implements chat.View
// and transcript.Sink by pushing messages over the websocket.
type page struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger
}

var (
	_ chat.View       = (*page)(nil)
	_ transcript.Sink = (*page)(nil)
)

func (p *page) SetOutput(text string) {
	p.push(serverMessage{Type: "output", Content: text})
}

func (p *page) SetSubmitEnabled(enabled bool) {
	p.push(serverMessage{Type: "state", SubmitEnabled: &enabled})
}

func (p *page) ClearInput() {
	p.push(serverMessage{Type: "clear_input"})
}

func (p *page) Write(e transcript.Entry) {
	p.push(serverMessage{Type: "log", Entry: &e})
}

// push sends a message; failures mean the page went away and are only
// logged, the read loop notices the closed socket.
func (p *page) push(msg serverMessage) {
	if err := p.send(msg); err != nil {
		p.logger.Debug("failed to push to page", "type", msg.Type, "error", err)
	}
}

func (p *page) send(msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return p.conn.Write(ctx, websocket.MessageText, data)
}

// errPromptSend is returned when the confirm dialog could not be shown.
var errPromptSend = errors.New("could not show authorization prompt")

// prompter asks the page's human via a native confirm dialog. Replies are
// matched by id; a reply for a prompt that is no longer pending is dropped.
type prompter struct {
	send func(serverMessage) error

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan bool
}

func newPrompter(send func(serverMessage) error) *prompter {
	return &prompter{send: send, pending: make(map[int64]chan bool)}
}

func (p *prompter) Confirm(ctx context.Context, req chat.ConfirmRequest) (bool, error) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	ch := make(chan bool, 1)
	p.pending[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if err := p.send(serverMessage{Type: "confirm", ID: id, Command: req.Command, Prompt: req.Prompt}); err != nil {
		return false, fmt.Errorf("%w: %w", errPromptSend, err)
	}

	select {
	case approved := <-ch:
		return approved, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// resolve delivers a reply. It reports whether a prompt was waiting.
func (p *prompter) resolve(id int64, approved bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.pending[id]
	if !ok {
		return false
	}
	delete(p.pending, id)
	ch <- approved
	return true
}
