// Package console is the interactive terminal front end shared by the
// encrypt and decrypt commands.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/wbrc/legacy"
)

const bannerWidth = 100

// ErrNoSelection is returned by ChooseFile when the user picks nothing.
var ErrNoSelection = errors.New("no file selected")

// Option configures a Console.
type Option func(*Console)

// WithColor forces colored output on or off. By default color is used only
// when the output is a terminal.
func WithColor(enabled bool) Option {
	return func(c *Console) { c.colorSet, c.colored = true, enabled }
}

// Console reads answers from one stream and writes prompts to another. Reads
// honour context cancellation.
type Console struct {
	out io.Writer
	in  io.Reader

	colorSet bool
	colored  bool
	tty      bool

	cyan, green, yellow, red, darkCyan *color.Color

	once  sync.Once
	lines chan string
}

// New returns a Console reading from in and writing to out.
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{in: in, out: out}
	if f, ok := out.(*os.File); ok {
		c.tty = term.IsTerminal(int(f.Fd()))
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.colorSet {
		c.colored = c.tty
	}

	c.cyan = c.newColor(color.FgHiCyan)
	c.green = c.newColor(color.FgHiGreen)
	c.yellow = c.newColor(color.FgHiYellow)
	c.red = c.newColor(color.FgHiRed)
	c.darkCyan = c.newColor(color.FgCyan)
	return c
}

func (c *Console) newColor(attr color.Attribute) *color.Color {
	col := color.New(attr)
	if c.colored {
		col.EnableColor()
	} else {
		col.DisableColor()
	}
	return col
}

// Clear wipes the screen when attached to a terminal.
func (c *Console) Clear() {
	if c.tty {
		fmt.Fprint(c.out, "\033[H\033[2J")
	}
}

// Banner prints title centred in a box.
func (c *Console) Banner(title string) {
	width := bannerWidth
	if len(title)+2 > width {
		width = len(title) + 2
	}
	pad := width - len(title)
	left := strings.Repeat(" ", pad/2)
	right := strings.Repeat(" ", pad-pad/2)
	line := strings.Repeat("═", width)

	fmt.Fprintln(c.out)
	c.cyan.Fprintln(c.out, "╔"+line+"╗")
	c.cyan.Fprintln(c.out, "║"+left+title+right+"║")
	c.cyan.Fprintln(c.out, "╚"+line+"╝")
}

// Plain prints an uncolored line.
func (c *Console) Plain(format string, args ...any) {
	fmt.Fprintf(c.out, "\n"+format+"\n", args...)
}

// Info prints a highlighted informational line.
func (c *Console) Info(format string, args ...any) {
	c.darkCyan.Fprintf(c.out, "\n"+format+"\n", args...)
}

// Success prints a line in green.
func (c *Console) Success(format string, args ...any) {
	c.green.Fprintf(c.out, "\n"+format+"\n", args...)
}

// Warn prints a line in yellow.
func (c *Console) Warn(format string, args ...any) {
	c.yellow.Fprintf(c.out, "\n"+format+"\n", args...)
}

// Failure prints an error line.
func (c *Console) Failure(format string, args ...any) {
	c.red.Fprintf(c.out, "\nError: "+format+"\n", args...)
}

// Status reports the outcome of one step.
func (c *Console) Status(message string, ok bool) {
	if ok {
		c.green.Fprintf(c.out, "%s Done\n", message)
		return
	}
	c.red.Fprintf(c.out, "%s Failed\n", message)
}

// Progress draws how many of the required keys have been accepted.
func (c *Console) Progress(collected, required int) {
	bar := progressbar.NewOptions(required,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Keys accepted"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(c.colored),
	)
	_ = bar.Set(collected)
	fmt.Fprintln(c.out)
}

// ReadLine waits for one line of input.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	c.once.Do(c.startReader)
	select {
	case <-ctx.Done():
		return "", legacy.Cancelled(ctx.Err())
	case line, ok := <-c.lines:
		if !ok {
			return "", legacy.Cancelled(io.EOF)
		}
		return line, nil
	}
}

// startReader feeds lines from in until it is exhausted. The goroutine ends
// with the input stream.
func (c *Console) startReader() {
	c.lines = make(chan string)
	go func() {
		defer close(c.lines)
		s := bufio.NewScanner(c.in)
		for s.Scan() {
			c.lines <- strings.TrimRight(s.Text(), "\r")
		}
	}()
}

func (c *Console) ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.ReadLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Pause waits for Enter.
func (c *Console) Pause(ctx context.Context, prompt string) error {
	_, err := c.ask(ctx, "\n"+prompt)
	return err
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	answer, err := c.ask(ctx, "\n"+question+" (y/n): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// AskInt asks until the answer is a whole number in [lo, hi].
func (c *Console) AskInt(ctx context.Context, prompt string, lo, hi int) (int, error) {
	for {
		answer, err := c.ask(ctx, "\n"+prompt)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err != nil {
			c.Failure("Please enter a valid number.")
			continue
		}
		if n < lo || n > hi {
			c.Failure("Please enter a number between %d and %d.", lo, hi)
			continue
		}
		return n, nil
	}
}

// AskString asks for free text, returning def for an empty answer.
func (c *Console) AskString(ctx context.Context, prompt, def string) (string, error) {
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]", prompt, def)
	}
	answer, err := c.ask(ctx, "\n"+prompt+": ")
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// ChooseFile lists the files in dir and returns the one picked by number. A
// path may be typed instead; an empty answer selects nothing.
func (c *Console) ChooseFile(ctx context.Context, title, dir string) (string, error) {
	files := listFiles(dir)

	fmt.Fprintf(c.out, "\n%s\n", title)
	if len(files) == 0 {
		fmt.Fprintf(c.out, "  (no files in %s)\n", dir)
	}
	for i, f := range files {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, filepath.Base(f))
	}

	answer, err := c.ask(ctx, "Enter a number or a file path: ")
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", ErrNoSelection
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(files) {
			return "", fmt.Errorf("%d is not one of the listed files", n)
		}
		return files[n-1], nil
	}
	answer = strings.Trim(answer, `"'`)
	if !filepath.IsAbs(answer) {
		answer = filepath.Join(dir, answer)
	}
	return answer, nil
}

func listFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files
}
