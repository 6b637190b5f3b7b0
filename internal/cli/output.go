package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"

	"github.com/adamwoolhether/reqflow/client"
)

// console writes human-readable response summaries to w.
type console struct {
	w       io.Writer
	noColor bool
}

func newConsole(w io.Writer, noColor bool) *console {
	if noColor {
		color.NoColor = true
	}

	return &console{w: w, noColor: noColor}
}

func (c *console) colorFor(status int) *color.Color {
	var attr color.Attribute
	switch {
	case status >= 500:
		attr = color.FgRed
	case status >= 400:
		attr = color.FgYellow
	case status >= 300:
		attr = color.FgCyan
	default:
		attr = color.FgGreen
	}

	col := color.New(attr, color.Bold)
	if c.noColor {
		col.DisableColor()
	}

	return col
}

// status prints the protocol and status, followed by one line per
// redirect hop.
func (c *console) status(resp *client.Response) {
	for _, hop := range resp.Hops() {
		fmt.Fprintf(c.w, "%s %d %s -> %s\n", c.colorFor(hop.Status).Sprint("↪"), hop.Status, hop.From, hop.To)
	}

	line := fmt.Sprintf("%s %d", resp.Proto(), resp.Status())
	c.colorFor(resp.Status()).Fprintln(c.w, line)
}

// headers prints the response fields sorted by name.
func (c *console) headers(resp *client.Response) {
	bold := color.New(color.Bold)
	if c.noColor {
		bold.DisableColor()
	}

	h := resp.Header()
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	slices.Sort(names)

	for _, k := range names {
		fmt.Fprintf(c.w, "%s: %s\n", bold.Sprint(k), strings.Join(h[k], ", "))
	}
	fmt.Fprintln(c.w)
}

func (c *console) errorf(format string, args ...any) {
	red := color.New(color.FgRed)
	if c.noColor {
		red.DisableColor()
	}

	red.Fprintf(c.w, "error: "+format+"\n", args...)
}
