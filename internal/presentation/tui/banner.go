package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the flowgraph banner.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"   __ _                                    _", "#818cf8"},
		{"  / _| |_____ __ ____ _ _ _ __ _ _ __| |_", "#a78bfa"},
		{" |  _| / _ \\ V  V / _` | '_/ _` | '_ \\ ' \\", "#e879f9"},
		{" |_| |_\\___/\\_/\\_/\\__, |_| \\__,_| .__/_||_|", "#f472b6"},
		{"                  |___/         |_|", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
