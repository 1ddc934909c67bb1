package console

import (
	"github.com/ashureev/agentchat/internal/transcript"
	"github.com/charmbracelet/lipgloss"
)

// ANSI 16-color palette, so output follows the terminal theme.
var (
	colorCyan   = lipgloss.Color("12")
	colorYellow = lipgloss.Color("11")
	colorGreen  = lipgloss.Color("10")
	colorRed    = lipgloss.Color("9")
	colorGray   = lipgloss.Color("8")
)

type styles struct {
	status  lipgloss.Style
	user    lipgloss.Style
	agent   lipgloss.Style
	confirm lipgloss.Style
	err     lipgloss.Style
	output  lipgloss.Style
	prompt  lipgloss.Style
}

// newStyles builds styles bound to r, which decides whether colors are
// emitted for the destination writer.
func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		status:  r.NewStyle().Foreground(colorGray),
		user:    r.NewStyle().Foreground(colorCyan),
		agent:   r.NewStyle().Foreground(colorGreen),
		confirm: r.NewStyle().Foreground(colorYellow).Bold(true),
		err:     r.NewStyle().Foreground(colorRed),
		output:  r.NewStyle().PaddingLeft(2),
		prompt:  r.NewStyle().Foreground(colorCyan).Bold(true),
	}
}

func (s styles) forCategory(c transcript.Category) lipgloss.Style {
	switch c {
	case transcript.CategoryUser:
		return s.user
	case transcript.CategoryAgent:
		return s.agent
	case transcript.CategoryAgentConfirm:
		return s.confirm
	case transcript.CategoryError:
		return s.err
	default:
		return s.status
	}
}
