// Package cli wires configuration, logging, the console and the age
// toolchain into a cobra command that runs one session flow.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wbrc/legacy"
	"github.com/wbrc/legacy/agetool"
	"github.com/wbrc/legacy/internal/config"
	"github.com/wbrc/legacy/internal/console"
	"github.com/wbrc/legacy/internal/logging"
	"github.com/wbrc/legacy/internal/session"
)

// Exit codes returned by Execute.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitCancelled = 130
)

// errReported marks a flow failure that was already shown to the user.
type errReported struct{ err error }

func (e *errReported) Error() string { return e.err.Error() }
func (e *errReported) Unwrap() error { return e.err }

// Command builds the command for flow. Configuration comes only from flags
// and the environment; everything else is asked interactively.
func Command(use, short, long string, flow session.Flow) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Long:          long,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Parse(cmd.Flags())
			var opts []console.Option
			if err == nil && cfg.NoColor {
				opts = append(opts, console.WithColor(false))
			}
			ui := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), opts...)
			if err != nil {
				return finish(ui, zap.NewNop(), err)
			}
			return run(cmd.Context(), cfg, ui, cmd.ErrOrStderr(), flow)
		},
	}
	config.AddFlags(cmd.Flags())
	return cmd
}

func run(parent context.Context, cfg *config.Config, ui *console.Console, errOut io.Writer, flow session.Flow) error {
	log, closeLog, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: errOut})
	if err != nil {
		return finish(ui, zap.NewNop(), err)
	}
	defer closeLog()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	result, err := session.Run(ctx, session.Options{
		Layout: cfg.Layout,
		UI:     ui,
		Tools: func(workDir string) (legacy.Toolchain, error) {
			return agetool.New(cfg.Layout.BinDir, workDir,
				agetool.WithTimeout(cfg.ToolTimeout),
				agetool.WithLogger(log),
			)
		},
		Log:               log,
		AllowRepeatedKeys: cfg.AllowRepeatedKeys,
	}, flow)
	// A second interrupt while waiting for Enter ends the process.
	stop()

	if err != nil {
		log.Error("session failed", zap.Stringer("code", legacy.CodeOf(err)), zap.Stringer("kind", legacy.KindOf(err)))
	} else {
		log.Info("session finished", zap.String("output", result))
	}
	return finish(ui, log, err)
}

// finish shows the outcome and holds the window open until Enter.
func finish(ui *console.Console, log *zap.Logger, err error) error {
	session.Report(ui, err)
	if perr := ui.Pause(context.Background(), "Press Enter to exit..."); perr != nil {
		log.Debug("no acknowledgement before exit", zap.Error(perr))
	}
	if err != nil {
		return &errReported{err: err}
	}
	return nil
}

// Execute runs cmd and maps the outcome to a process exit code. Failures the
// session already reported are not printed twice.
func Execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	var reported *errReported
	switch {
	case err == nil:
		return ExitOK
	case legacy.IsCancelled(err):
		return ExitCancelled
	case errors.As(err, &reported):
		return ExitFailure
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		return ExitFailure
	}
}
