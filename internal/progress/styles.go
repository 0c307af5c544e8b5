package progress

import "github.com/charmbracelet/lipgloss"

var (
	colorDumping    = lipgloss.Color("#00BFFF")
	colorFinalizing = lipgloss.Color("#FFB800")
	colorDone       = lipgloss.Color("#04B575")
	colorAborted    = lipgloss.Color("#FF4040")
	colorMuted      = lipgloss.Color("#666666")
)

var (
	dumpingBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDumping).Padding(0, 1)
	finalizingBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorFinalizing).Padding(0, 1)
	doneBox       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDone).Padding(0, 1)
	abortedBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAborted).Padding(0, 1)
	throughputText = lipgloss.NewStyle().Foreground(colorMuted)
)

func boxFor(state string) lipgloss.Style {
	switch state {
	case "DUMPING":
		return dumpingBox
	case "FINALIZING":
		return finalizingBox
	case "ABORTED":
		return abortedBox
	default:
		return doneBox
	}
}
