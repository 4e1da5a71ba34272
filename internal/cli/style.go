package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"chatcli/internal/models"
)

var roleTitle = cases.Title(language.English)

// roleLabel renders a role the way the transcript shows it, e.g. "Assistant".
func roleLabel(role models.Role) string {
	return roleTitle.String(string(role))
}

// styledFormatter colours output when the writer is a terminal and prints
// plain text otherwise.
type styledFormatter struct {
	assistant lipgloss.Style
	status    lipgloss.Style
	err       lipgloss.Style
}

func newStyledFormatter(w io.Writer) *styledFormatter {
	r := lipgloss.NewRenderer(w)
	return &styledFormatter{
		assistant: r.NewStyle().Foreground(lipgloss.Color("10")),
		status:    r.NewStyle().Foreground(lipgloss.Color("8")),
		err:       r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

func (f *styledFormatter) Assistant(w io.Writer, text string) {
	fmt.Fprintln(w, f.assistant.Render(roleLabel(models.RoleAssistant)+": "+text))
}

func (f *styledFormatter) Status(w io.Writer, line string) {
	fmt.Fprintln(w, f.status.Render(line))
}

func (f *styledFormatter) Error(w io.Writer, line string) {
	fmt.Fprintln(w, f.err.Render(line))
}
