package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"  ┌┐ ┬─┐┌─┐┌┐┌┌─┐┬ ┬┌─┐┌─┐┬  ┬  ", "#818cf8"},
	{"  ├┴┐├┬┘├─┤││││  ├─┤├─┘│ ││  │  ", "#c084fc"},
	{"  └─┘┴└─┴ ┴┘└┘└─┘┴ ┴┴  └─┘┴─┘┴─┘", "#f472b6"},
}

// PrintBanner writes the branchpoll banner to w, colored when w is a
// terminal that supports it.
func PrintBanner(w io.Writer) {
	p := termenv.NewOutput(w).Profile

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Highlight colors s for w, e.g. the question being asked.
func Highlight(w io.Writer, s string) string {
	p := termenv.NewOutput(w).Profile
	return p.String(s).Foreground(p.Color("#a78bfa")).Bold().String()
}
