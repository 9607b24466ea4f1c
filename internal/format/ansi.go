// Package format renders attribution results for a terminal.
package format

import (
	"io"
	"os"

	"golang.org/x/term"
)

// Colors holds the escape sequences for one output stream. Every field is
// empty when the stream is not a terminal or NO_COLOR is set.
type Colors struct {
	Reset   string
	Bold    string
	Dim     string
	Yellow  string
	Cyan    string
	Green   string
	Red     string
	Magenta string
	Blue    string
}

var ansi = Colors{
	Reset:   "\033[0m",
	Bold:    "\033[1m",
	Dim:     "\033[2m",
	Yellow:  "\033[33m",
	Cyan:    "\033[36m",
	Green:   "\033[32m",
	Red:     "\033[31m",
	Magenta: "\033[35m",
	Blue:    "\033[34m",
}

// ColorsFor returns the colors to use when writing to w.
func ColorsFor(w io.Writer) Colors {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return Colors{}
	}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return Colors{}
	}
	return ansi
}

// agent returns a stable color for the i-th agent in a listing.
func (c Colors) agent(i int) string {
	palette := []string{c.Magenta, c.Cyan, c.Yellow, c.Blue}
	return palette[i%len(palette)]
}

// Width returns the terminal width of w, defaulting to 80.
func Width(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
