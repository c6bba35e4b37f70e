package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ClearProgress is the escape sequence that erases the current line.
const ClearProgress = "\033[2K\r"

// ColorEnabled returns whether output to `f` should be coloured. Colour is
// disabled when `f` isn't a terminal, or when NO_COLOR is set.
func ColorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes human readable reports.
type Printer struct {
	out io.Writer

	bold, green, red, yellow *color.Color
}

// NewStdoutPrinter creates a Printer that writes to stdout.
func NewStdoutPrinter() *Printer {
	return NewPrinter(os.Stdout, ColorEnabled(os.Stdout))
}

// NewPrinter creates a Printer that writes to `out`.
func NewPrinter(out io.Writer, useColor bool) *Printer {
	p := &Printer{
		out:    out,
		bold:   color.New(color.Bold),
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{p.bold, p.green, p.red, p.yellow} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Section prints a header that separates the steps of a report.
func (p *Printer) Section(title string) {
	fmt.Fprintln(p.out)
	p.bold.Fprintf(p.out, "=== %s ===\n", title)
}

// List prints `items` under `header`, separated from the previous output by
// a blank line. If there are no items, `empty` is printed instead, unless
// it's empty too.
func (p *Printer) List(header string, items []string, empty string) {
	if len(items) == 0 {
		if empty != "" {
			fmt.Fprintln(p.out)
			p.green.Fprintln(p.out, empty)
		}
		return
	}

	fmt.Fprintln(p.out)
	p.yellow.Fprintln(p.out, header)
	for _, item := range items {
		fmt.Fprintf(p.out, "- %s\n", item)
	}
}

// Line prints a plain line.
func (p *Printer) Line(format string, a ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", a...)
}

// Success prints a line indicating that something succeeded.
func (p *Printer) Success(format string, a ...interface{}) {
	p.green.Fprintf(p.out, format+"\n", a...)
}

// Failure prints a line indicating that something failed.
func (p *Printer) Failure(format string, a ...interface{}) {
	p.red.Fprintf(p.out, format+"\n", a...)
}

// ProgressPrinter prints a message followed by a growing line of dots until
// it's stopped. It's a no-op when the output isn't a terminal.
type ProgressPrinter struct {
	out     io.Writer
	msg     string
	enabled bool

	stop     chan string
	stopOnce sync.Once
	done     chan struct{}
}

// NewProgressPrinter creates a ProgressPrinter. Run must be called in a
// goroutine to start printing.
func NewProgressPrinter(out *os.File, msg string) *ProgressPrinter {
	return &ProgressPrinter{
		out:     out,
		msg:     msg,
		enabled: isatty.IsTerminal(out.Fd()),
		stop:    make(chan string, 1),
		done:    make(chan struct{}),
	}
}

// Run prints progress until StopWithPrint is called.
func (pp *ProgressPrinter) Run() {
	defer close(pp.done)
	if !pp.enabled {
		<-pp.stop
		return
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	fmt.Fprint(pp.out, pp.msg)
	for {
		select {
		case final := <-pp.stop:
			fmt.Fprint(pp.out, final)
			return
		case <-ticker.C:
			fmt.Fprint(pp.out, ".")
		}
	}
}

// StopWithPrint stops the printer, prints `final`, and waits for Run to
// return.
func (pp *ProgressPrinter) StopWithPrint(final string) {
	pp.stopOnce.Do(func() { pp.stop <- final })
	<-pp.done
}
