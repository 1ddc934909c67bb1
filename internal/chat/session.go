// Package chat implements the session controller that relays user turns to
// the agent and runs the human authorization round trip.
package chat

import (
	"context"
	"sync"

	"github.com/ashureev/agentchat/internal/agentapi"
)

// Agent is the remote conversational agent.
type Agent interface {
	StartConversation(ctx context.Context) (string, error)
	Chat(ctx context.Context, sessionID string, req agentapi.TurnRequest) (*agentapi.TurnResponse, error)
}

// Ensure the HTTP client implements Agent.
var _ Agent = (*agentapi.Client)(nil)

// ConfirmRequest asks the human to authorize a command.
type ConfirmRequest struct {
	Command string
	// Repeat is set when the agent asks again after a confirmed command.
	Repeat bool
	Prompt string
}

// Prompter asks the human a yes/no question and blocks until answered or
// ctx is done.
type Prompter interface {
	Confirm(ctx context.Context, req ConfirmRequest) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, req ConfirmRequest) (bool, error)

// Confirm calls f(ctx, req).
func (f PrompterFunc) Confirm(ctx context.Context, req ConfirmRequest) (bool, error) {
	return f(ctx, req)
}

// View is the presentation the controller drives: a single output field,
// the submit control and the input field.
type View interface {
	SetOutput(text string)
	SetSubmitEnabled(enabled bool)
	ClearInput()
}

// Session holds the remote session id. It is written once, by the
// controller, and read by anyone.
type Session struct {
	mu sync.RWMutex
	id string
}

// ID returns the session id and whether one has been created.
func (s *Session) ID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.id != ""
}

func (s *Session) set(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}
