package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/agentchat/internal/agentapi"
	"github.com/ashureev/agentchat/internal/transcript"
)

var (
	// ErrNoSession is returned by SubmitTurn before a session exists.
	ErrNoSession = errors.New("session id is missing")
	// ErrEmptyResponse is returned when the agent produced no response.
	ErrEmptyResponse = errors.New("agent returned an empty response")
)

// CancelledOutput is shown when the human denies an authorization prompt.
const CancelledOutput = "Action cancelled by user."

// phase selects the wording used while dispatching a response.
type phase int

const (
	phaseQuery phase = iota
	phaseConfirmed
)

// Controller is the chat session controller. One controller serves one
// page for its lifetime.
type Controller struct {
	agent    Agent
	prompter Prompter
	view     View
	log      *transcript.Log
	logger   *slog.Logger
	session  Session

	onSession func(sessionID string)

	mu            sync.Mutex
	submitEnabled bool
}

// NewController wires a controller. Submission starts enabled and no
// session exists until the first message is sent.
func NewController(agent Agent, prompter Prompter, view View, log *transcript.Log, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		agent:         agent,
		prompter:      prompter,
		view:          view,
		log:           log,
		logger:        logger,
		submitEnabled: true,
	}
}

// OnSessionStarted registers fn to be called once the remote session exists.
// It must be set before the first message is sent.
func (c *Controller) OnSessionStarted(fn func(sessionID string)) {
	c.onSession = fn
}

// SessionID returns the remote session id, if one was created.
func (c *Controller) SessionID() (string, bool) {
	return c.session.ID()
}

// SubmitEnabled reports whether a new user action would be accepted.
func (c *Controller) SubmitEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitEnabled
}

// EnsureSession creates the remote session on first use. It reports false
// when no session is available; the failure has already been logged and
// shown.
func (c *Controller) EnsureSession(ctx context.Context) bool {
	if _, ok := c.session.ID(); ok {
		return true
	}

	c.log.Append(transcript.CategoryStatus, "Starting new conversation...")
	id, err := c.agent.StartConversation(ctx)
	if err != nil {
		c.logger.Warn("failed to start agent session", "error", err)
		c.log.Append(transcript.CategoryError, "Error starting session: "+err.Error())
		c.view.SetOutput("Failed to start session: " + err.Error())
		return false
	}

	c.session.set(id)
	c.logger.Info("agent session started", "session_id", id)
	c.log.Append(transcript.CategoryStatus, "Session started: "+id)
	if c.onSession != nil {
		c.onSession(id)
	}
	return true
}

// SubmitTurn sends one turn to the current session.
func (c *Controller) SubmitTurn(ctx context.Context, req agentapi.TurnRequest) (*agentapi.TurnResponse, error) {
	id, ok := c.session.ID()
	if !ok {
		return nil, ErrNoSession
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.agent.Chat(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

// SendMessage is the entry point for a user pressing send. Blank input is
// ignored, as is input arriving while a previous action is still running.
func (c *Controller) SendMessage(ctx context.Context, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	if !c.beginAction() {
		c.logger.Debug("send ignored, action in flight")
		return
	}

	c.view.SetOutput("")
	c.log.Append(transcript.CategoryUser, "You: "+query)

	if !c.EnsureSession(ctx) {
		c.endAction()
		return
	}

	resp, err := c.SubmitTurn(ctx, agentapi.UserQuery(query))
	if err != nil {
		c.fail(phaseQuery, err)
	} else {
		c.dispatch(ctx, resp, phaseQuery)
	}

	c.endAction()
	c.view.ClearInput()
}

// SendConfirmedCommand submits a command the human already authorized and
// resolves whatever the agent answers, including further prompts.
func (c *Controller) SendConfirmedCommand(ctx context.Context, command string) {
	if !c.beginAction() {
		c.logger.Debug("confirmed command ignored, action in flight")
		return
	}
	if _, ok := c.session.ID(); !ok {
		c.log.Append(transcript.CategoryError, "Error: Session ID is missing.")
		c.endAction()
		return
	}

	resp, err := c.submitConfirmed(ctx, command)
	if err != nil {
		c.fail(phaseConfirmed, err)
	} else {
		c.dispatch(ctx, resp, phaseConfirmed)
	}

	c.endAction()
}

func (c *Controller) submitConfirmed(ctx context.Context, command string) (*agentapi.TurnResponse, error) {
	c.log.Append(transcript.CategoryStatus, "Sending confirmed command: "+command)
	return c.SubmitTurn(ctx, agentapi.ConfirmedCommand(command))
}

// dispatch resolves a response. A chain of confirmation requests is walked
// iteratively: each approval submits the command and the loop continues
// with the agent's next answer.
func (c *Controller) dispatch(ctx context.Context, resp *agentapi.TurnResponse, ph phase) {
	for {
		switch resp.Status {
		case agentapi.StatusCompleted:
			c.view.SetOutput(resp.Response)
			if ph == phaseConfirmed {
				c.log.Append(transcript.CategoryAgent, "Agent (after confirmation): "+resp.Response)
			} else {
				c.log.Append(transcript.CategoryAgent, "Agent: "+resp.Response)
			}
			return

		case agentapi.StatusError:
			msg := "Error: " + resp.Response
			if ph == phaseConfirmed {
				msg = "Error after confirmation: " + resp.Response
			}
			c.view.SetOutput(msg)
			c.log.Append(transcript.CategoryError, msg)
			return

		case agentapi.StatusConfirmationRequired:
			if resp.CommandToConfirm == "" {
				c.unexpected(resp, ph)
				return
			}
			next, ok := c.confirm(ctx, resp.CommandToConfirm, ph)
			if !ok {
				return
			}
			resp, ph = next, phaseConfirmed

		default:
			c.unexpected(resp, ph)
			return
		}
	}
}

// confirm runs one authorization round trip. It returns the agent's answer
// to the confirmed command, or false when the chain ended here.
func (c *Controller) confirm(ctx context.Context, command string, ph phase) (*agentapi.TurnResponse, bool) {
	req := ConfirmRequest{Command: command, Repeat: ph == phaseConfirmed}
	if req.Repeat {
		c.log.Append(transcript.CategoryAgentConfirm, "Agent: Another confirmation required for: "+command)
		req.Prompt = fmt.Sprintf("Another authorization required for command:\n\n%s\n\nExecute anyway?", command)
	} else {
		c.log.Append(transcript.CategoryAgentConfirm, "Agent: Authorization required for command: "+command)
		req.Prompt = fmt.Sprintf("Authorization required for command:\n\n%s\n\nExecute anyway?", command)
	}

	approved, err := c.prompter.Confirm(ctx, req)
	if err != nil {
		c.logger.Warn("authorization prompt failed", "command", command, "error", err)
		msg := "Authorization prompt failed: " + err.Error()
		c.view.SetOutput(msg)
		c.log.Append(transcript.CategoryError, msg)
		return nil, false
	}
	if !approved {
		c.log.Append(transcript.CategoryStatus, "Authorization denied by user.")
		c.view.SetOutput(CancelledOutput)
		return nil, false
	}

	if !req.Repeat {
		c.log.Append(transcript.CategoryStatus, "Authorization granted by user. Sending confirmation...")
	}
	next, err := c.submitConfirmed(ctx, command)
	if err != nil {
		c.fail(phaseConfirmed, err)
		return nil, false
	}
	return next, true
}

func (c *Controller) unexpected(resp *agentapi.TurnResponse, ph phase) {
	response := resp.Response
	if response == "" {
		response = "N/A"
	}
	label, logLabel := "Unexpected status", "Unexpected Status"
	if ph == phaseConfirmed {
		label, logLabel = "Unexpected status after confirmation", "Unexpected Status after confirmation"
	}
	c.view.SetOutput(fmt.Sprintf("%s: %s\nResponse: %s", label, resp.Status, response))
	c.log.Append(transcript.CategoryError, logLabel+": "+string(resp.Status))
}

func (c *Controller) fail(ph phase, err error) {
	c.logger.Warn("agent turn failed", "confirmed", ph == phaseConfirmed, "error", err)
	msg := "Network or API Error: " + err.Error()
	if ph == phaseConfirmed {
		msg = "Network or API Error during confirmation: " + err.Error()
	}
	c.view.SetOutput(msg)
	c.log.Append(transcript.CategoryError, msg)
}

// beginAction disables submission, failing if it already was disabled.
func (c *Controller) beginAction() bool {
	c.mu.Lock()
	if !c.submitEnabled {
		c.mu.Unlock()
		return false
	}
	c.submitEnabled = false
	c.mu.Unlock()

	c.view.SetSubmitEnabled(false)
	return true
}

func (c *Controller) endAction() {
	c.mu.Lock()
	c.submitEnabled = true
	c.mu.Unlock()

	c.view.SetSubmitEnabled(true)
}
