package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
)

// PrintLogo renders the shotloom banner to stderr.
func PrintLogo() {
	w := os.Stderr
	frame := color.New(color.FgCyan)
	reel := color.New(color.FgYellow)
	brand := color.New(color.Bold, color.FgMagenta)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +--------------------------+")
	reel.Fprintln(w, "   | [] [] [] [] [] [] [] []  |")
	brand.Fprintln(w, "   |  S H O T L O O M         |")
	reel.Fprintln(w, "   | [] [] [] [] [] [] [] []  |")
	frame.Fprintln(w, "   +--------------------------+")
	color.New(color.Faint).Fprintf(w, "   %s Production scheduling\n", Dim("🎬"))
	fmt.Fprintln(w)
}

// taskColors is a palette of distinct bold colors for differentiating tasks.
var taskColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

func taskColorIndex(taskID string) int {
	var h uint32
	for _, c := range taskID {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(taskColors)))
}

// TaskPrefix returns a colored [Task_N] prefix string.
func TaskPrefix(taskID string) string {
	c := taskColors[taskColorIndex(taskID)]
	return Dim("[") + c(taskID) + Dim("]")
}

// StatusIcon returns a colored icon for a task or review status code.
func StatusIcon(status string) string {
	switch status {
	case "CMPL", "APP":
		return Green("✓")
	case "WIP":
		return Cyan("●")
	case "PREV", "NEW":
		return Magenta("◎")
	case "HREV", "RREV":
		return Red("↺")
	case "DREV":
		return Yellow("↺")
	case "OH":
		return Yellow("‖")
	case "STOP":
		return Dim("■")
	case "RTS":
		return BoldGreen("▶")
	default:
		return Dim("◌")
	}
}

// Status returns the status code colored like its icon.
func Status(status string) string {
	switch status {
	case "CMPL", "APP":
		return Green(status)
	case "WIP":
		return BoldCyan(status)
	case "HREV", "RREV":
		return Red(status)
	case "DREV", "OH":
		return Yellow(status)
	case "RTS":
		return BoldGreen(status)
	default:
		return Dim(status)
	}
}
