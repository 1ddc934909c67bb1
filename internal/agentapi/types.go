// Package agentapi is the HTTP client for the remote conversational agent.
package agentapi

import "errors"

// ErrInvalidTurn is returned when a turn request does not carry exactly one
// of a user query or a confirmed command.
var ErrInvalidTurn = errors.New("turn must carry exactly one of user_query or confirmed_command")

// Status tags a turn response.
type Status string

const (
	// StatusCompleted means the agent produced a final answer.
	StatusCompleted Status = "completed"
	// StatusError means the agent failed while processing the turn.
	StatusError Status = "error"
	// StatusConfirmationRequired means the agent wants human authorization
	// before running CommandToConfirm.
	StatusConfirmationRequired Status = "confirmation_required"
)

// TurnRequest is the body of POST /chat/{session_id}. Both fields are
// always serialized; the unused one goes out as null.
type TurnRequest struct {
	UserQuery        *string `json:"user_query"`
	ConfirmedCommand *string `json:"confirmed_command"`
}

// UserQuery builds a user-query turn.
func UserQuery(text string) TurnRequest {
	return TurnRequest{UserQuery: &text}
}

// ConfirmedCommand builds a confirmed-command turn.
func ConfirmedCommand(command string) TurnRequest {
	return TurnRequest{ConfirmedCommand: &command}
}

// Validate checks that exactly one field is populated.
func (r TurnRequest) Validate() error {
	if (r.UserQuery == nil) == (r.ConfirmedCommand == nil) {
		return ErrInvalidTurn
	}
	return nil
}

// IsConfirmed reports whether the request carries a confirmed command.
func (r TurnRequest) IsConfirmed() bool {
	return r.ConfirmedCommand != nil
}

// TurnResponse is the agent's answer to a turn.
type TurnResponse struct {
	Status           Status `json:"status"`
	Response         string `json:"response,omitempty"`
	CommandToConfirm string `json:"command_to_confirm,omitempty"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}
