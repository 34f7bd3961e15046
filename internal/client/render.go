package client

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"

	"textile-core/internal/chat"
)

var (
	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	rawStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	dataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	// nickColors is the palette sender names are hashed into.
	nickColors = []lipgloss.Color{"12", "10", "11", "13", "14", "9", "208", "141"}
)

// Renderer formats received label:data messages for the terminal.
type Renderer struct {
	plain bool
}

// NewRenderer returns a renderer. Plain renderers emit no escape sequences.
func NewRenderer(plain bool) *Renderer {
	return &Renderer{plain: plain}
}

// Render formats one message. Unlabelled text is shown as is.
func (r *Renderer) Render(msg string) string {
	label, data, ok := chat.Split(msg)
	if !ok {
		if r.plain {
			return msg
		}
		return rawStyle.Render(msg)
	}
	if label == chat.System {
		if r.plain {
			return "* " + data
		}
		return systemStyle.Render("* " + data)
	}
	if r.plain {
		return label + ": " + data
	}
	return nickStyle(label).Render(label) + ": " + dataStyle.Render(data)
}

func nickStyle(name string) lipgloss.Style {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(nickColors[h.Sum32()%uint32(len(nickColors))])
}
