// Package session runs one encrypt or decrypt session: it owns the scoped
// working directory, drives the user through the steps and tears everything
// down on every exit path.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wbrc/legacy"
	"github.com/wbrc/legacy/internal/config"
)

// UI is the interactive surface a session talks to.
type UI interface {
	Clear()
	Banner(title string)
	Plain(format string, args ...any)
	Info(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	Failure(format string, args ...any)
	Status(message string, ok bool)
	Progress(collected, required int)

	Pause(ctx context.Context, prompt string) error
	Confirm(ctx context.Context, question string) (bool, error)
	AskInt(ctx context.Context, prompt string, lo, hi int) (int, error)
	AskString(ctx context.Context, prompt, def string) (string, error)
	ChooseFile(ctx context.Context, title, dir string) (string, error)
}

// ToolchainFunc builds the toolchain once the working directory exists.
type ToolchainFunc func(workDir string) (legacy.Toolchain, error)

// Opener hands a file to the platform's default application.
type Opener func(ctx context.Context, path string) error

// Options configures New. UI and Tools are required.
type Options struct {
	Layout            config.Layout
	UI                UI
	Tools             ToolchainFunc
	Log               *zap.Logger
	AllowRepeatedKeys bool
	// Now defaults to time.Now.
	Now func() time.Time
	// Open defaults to OpenFile.
	Open Opener
}

// Session is one run of a flow. Close must be called exactly once the flow
// is over; it is safe to call more than once.
type Session struct {
	ID      string
	WorkDir string

	layout        config.Layout
	ui            UI
	tools         legacy.Toolchain
	log           *zap.Logger
	allowRepeated bool
	now           func() time.Time
	open          Opener

	step, steps int

	closeOnce sync.Once
	closeErr  error
}

// New creates the working directory and the toolchain bound to it.
func New(opts Options) (*Session, error) {
	if opts.UI == nil || opts.Tools == nil {
		return nil, errors.New("session needs a UI and a toolchain")
	}
	id := uuid.NewString()
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session", id))

	workDir, err := os.MkdirTemp("", "digital-legacy-")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	s := &Session{
		ID:            id,
		WorkDir:       workDir,
		layout:        opts.Layout,
		ui:            opts.UI,
		log:           log,
		allowRepeated: opts.AllowRepeatedKeys,
		now:           opts.Now,
		open:          opts.Open,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.open == nil {
		s.open = OpenFile
	}

	tools, err := opts.Tools(workDir)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.tools = tools
	log.Debug("session started", zap.String("workDir", workDir))
	return s, nil
}

// Close overwrites every file in the working directory with zeros and then
// removes the directory.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.scrub()
		s.closeErr = os.RemoveAll(s.WorkDir)
		if s.closeErr != nil {
			s.log.Warn("failed to remove working directory", zap.Error(s.closeErr))
			return
		}
		s.log.Debug("working directory removed")
	})
	return s.closeErr
}

// scrub zero-fills the regular files below WorkDir. The combined identity
// alone opens the ciphertext, so unlinking it is not enough.
func (s *Session) scrub() {
	err := filepath.WalkDir(s.WorkDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.WorkDir {
				return err
			}
			s.log.Warn("failed to read working file", zap.String("file", filepath.Base(path)), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := zeroFill(path); err != nil {
			s.log.Warn("failed to overwrite working file", zap.String("file", filepath.Base(path)), zap.Error(err))
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("failed to walk working directory", zap.Error(err))
	}
}

func zeroFill(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	zeros := make([]byte, 32<<10)
	for left := info.Size(); left > 0; {
		n := int64(len(zeros))
		if left < n {
			n = left
		}
		if _, err := f.Write(zeros[:n]); err != nil {
			f.Close()
			return err
		}
		left -= n
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Flow is one of the session's entry flows.
type Flow func(ctx context.Context, s *Session) (string, error)

// Run opens a session, runs flow and closes the session whatever happens.
// It returns the path of the file the flow produced.
func Run(ctx context.Context, opts Options, flow Flow) (string, error) {
	s, err := New(opts)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return flow(ctx, s)
}

func (s *Session) startSteps(total int) {
	s.step, s.steps = 0, total
}

// banner announces the next step.
func (s *Session) banner(title string) {
	s.step++
	s.ui.Banner(fmt.Sprintf("[Step %d of %d] %s", s.step, s.steps, title))
}

func (s *Session) gateway() *legacy.Gateway {
	return &legacy.Gateway{Cipher: s.tools, Log: s.log, Now: s.now}
}

// Describe renders err for the person at the console.
func Describe(err error) string {
	var e *legacy.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch {
	case e.Detail != "" && e.Err != nil:
		return e.Detail + ": " + e.Err.Error()
	case e.Detail != "":
		return e.Detail
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Code.String()
}

// Report prints the single diagnostic for a finished flow.
func Report(ui UI, err error) {
	switch {
	case err == nil:
	case legacy.IsCancelled(err):
		ui.Warn("Operation cancelled by user.")
	default:
		ui.Failure("%s", Describe(err))
	}
}
