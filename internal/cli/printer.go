package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// PrintError writes err in red, for main.
func PrintError(w io.Writer, err error) {
	red.Fprint(w, "error: ")
	fmt.Fprintln(w, err)
}

func field(w io.Writer, name string, value any) {
	cyan.Fprintf(w, "%-10s", name)
	fmt.Fprintln(w, value)
}
