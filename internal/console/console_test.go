package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ashureev/agentchat/internal/agentapi"
	"github.com/ashureev/agentchat/internal/agentapi/agentapitest"
	"github.com/ashureev/agentchat/internal/chat"
)

func runConsole(t *testing.T, agent *agentapitest.Agent, input string) (string, *Console) {
	t.Helper()

	srv := agent.NewServer()
	t.Cleanup(srv.Close)
	client, err := agentapi.NewClient(srv.URL, srv.Client(), nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	var out bytes.Buffer
	c := New(client, strings.NewReader(input), &out, nil)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return out.String(), c
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestConsole_Completed(t *testing.T) {
	t.Parallel()

	out, c := runConsole(t, agentapitest.New(), "show dbs\n\nlist tables\n")

	assertContains(t, out,
		InitialMessage,
		"You: show dbs",
		"Session started: session-1",
		"Agent: echo: show dbs",
		"Agent: echo: list tables",
	)
	if id, ok := c.Controller().SessionID(); !ok || id != "session-1" {
		t.Errorf("Expected session-1, got %q", id)
	}
	// Initial entry, then 4 for the first turn and 2 for the second.
	if n := c.Log().Len(); n != 7 {
		t.Errorf("Expected 7 log entries, got %d", n)
	}
}

func TestConsole_ConfirmApproved(t *testing.T) {
	t.Parallel()

	agent := agentapitest.New().QueueChat(
		agentapitest.Turn(agentapi.StatusConfirmationRequired, "", "rm -rf /tmp/cache"),
	)
	out, _ := runConsole(t, agent, "clean cache\nyes\n")

	assertContains(t, out,
		"Agent: Authorization required for command: rm -rf /tmp/cache",
		"Execute anyway?",
		"[y/N]",
		"Authorization granted by user. Sending confirmation...",
		"Agent (after confirmation): executed: rm -rf /tmp/cache",
	)
}

func TestConsole_ConfirmDenied(t *testing.T) {
	t.Parallel()

	agent := agentapitest.New().QueueChat(
		agentapitest.Turn(agentapi.StatusConfirmationRequired, "", "shutdown -h now"),
	)
	out, _ := runConsole(t, agent, "power off\n\n")

	assertContains(t, out, "Authorization denied by user.", chat.CancelledOutput)
	if n := len(agent.Requests()); n != 1 {
		t.Errorf("Expected only the query to reach the agent, got %d requests", n)
	}
}

func TestConsole_EOFDuringPrompt(t *testing.T) {
	t.Parallel()

	agent := agentapitest.New().QueueChat(
		agentapitest.Turn(agentapi.StatusConfirmationRequired, "", "ls"),
	)
	out, _ := runConsole(t, agent, "list files\n")

	assertContains(t, out, "Authorization prompt failed: unexpected EOF")
}

func TestConsole_Quit(t *testing.T) {
	t.Parallel()

	agent := agentapitest.New()
	out, _ := runConsole(t, agent, "/quit\nnever sent\n")

	if strings.Contains(out, "never sent") {
		t.Errorf("Expected input after /quit to be ignored, got:\n%s", out)
	}
	if agent.Starts() != 0 {
		t.Errorf("Expected no session to be started, got %d", agent.Starts())
	}
}
