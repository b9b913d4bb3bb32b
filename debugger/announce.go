package debugger

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/rdebug/tui/theme"
	"github.com/muesli/termenv"
)

// announce prints the connection panel and the tunnel instructions. Styling
// follows the capabilities of w, so redirected job output stays plain.
func announce(w io.Writer, d Descriptor, listenAddr, sshCommand string, localPort int) {
	r := lipgloss.NewRenderer(w, termenv.WithColorCache(true))
	colors := theme.DefaultTheme.Colors

	label := r.NewStyle().Bold(true)
	value := r.NewStyle().Foreground(colors.Cyan)
	row := func(name, v string) string {
		return label.Render(fmt.Sprintf("%-13s", name)) + value.Render(v)
	}

	title := r.NewStyle().Bold(true).Foreground(colors.Yellow).Render("Remote Debugger Info")
	body := lipgloss.JoinVertical(lipgloss.Left,
		title,
		row("Node:", d.Hostname),
		row("Port:", fmt.Sprint(d.Port)),
		row("Remote Path:", d.RemotePath),
	)
	panel := r.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colors.Violet).
		Padding(0, 1).
		Render(body)

	fmt.Fprintln(w, panel)
	fmt.Fprintf(w, "[DEBUGGER] Listening on %s\n", listenAddr)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "To connect from a local editor, run this on your local machine:")
	fmt.Fprintln(w, r.NewStyle().Foreground(colors.Green).Render(sshCommand))
	fmt.Fprintf(w, "Then, attach the debugger to localhost:%d.\n\n", localPort)
}
