// Package app provides a small functional-options CLI scaffold wrapping
// a *cobra.Command, mirroring the app.NewApp/app.WithOptions/app.WithRunFunc
// shape echoryn/internal/golem/app.go builds on — recreated here since
// pkg/app itself wasn't part of the retrieved source, from that call site
// plus echoryn/internal/echoctl/cmd/cmd.go's NamedFlagSets/viper wiring.
package app

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiosk404/pluginkit/pkg/utils/cliflag"
	"github.com/kiosk404/pluginkit/pkg/version"
)

// CliOptions is implemented by an options aggregator that can contribute
// a flag usage breakdown, matching echoryn's *Options.Flags() shape.
type CliOptions interface {
	Flags() (cliflag.NamedFlagSets, error)
}

// RunFunc is invoked once flags have been bound, with argv (excluding
// the program name) forwarded verbatim.
type RunFunc func(args []string) error

// App wraps a *cobra.Command with the name/description/options/run-func
// plumbing every pluginkit entrypoint shares.
type App struct {
	name        string
	basename    string
	description string
	options     CliOptions
	runFunc     RunFunc
	silence     bool

	cmd *cobra.Command
}

// Option configures an App, following the functional-options convention
// echoryn/internal/golem/app.go uses (app.WithOptions(...), app.WithRunFunc(...)).
type Option func(*App)

// WithOptions attaches a CliOptions implementation whose flag groups are
// shown in --help output (the actual parsing is done elsewhere, by the
// aggregator RunFunc owns).
func WithOptions(o CliOptions) Option {
	return func(a *App) { a.options = o }
}

// WithDescription sets the long description shown by --help.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithRunFunc sets the function invoked once flags are parsed.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithSilence suppresses cobra's automatic usage/error output, letting
// the caller's own logger report failures instead.
func WithSilence() Option {
	return func(a *App) { a.silence = true }
}

// NewApp builds an App named name (basename is the executable name used
// in usage output), applying every opt.
func NewApp(name, basename string, opts ...Option) *App {
	a := &App{name: name, basename: basename}
	for _, opt := range opts {
		opt(a)
	}
	a.buildCommand()
	return a
}

// buildCommand wires a *cobra.Command whose only job is --help display
// and process entry; flag parsing is deliberately disabled (cobra would
// otherwise have to know every plugin's flags up front and would hand
// RunE only the leftover positional args). The real parsing — including
// --help, --version, --plugin, --config-file, and every plugin-contributed
// flag — is done by the options.Aggregator the RunFunc itself owns,
// against the raw argv cobra passes through untouched.
func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:                a.basename,
		Short:              a.name,
		Long:               a.description,
		SilenceUsage:       a.silence,
		SilenceErrors:      a.silence,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.runFunc == nil {
				return nil
			}
			return a.runFunc(args)
		},
	}
	cmd.SetUsageFunc(a.usage)
	a.cmd = cmd
}

func (a *App) usage(cmd *cobra.Command) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Usage:\n  %s [flags]\n\n", a.basename)
	if a.options != nil {
		if fss, err := a.options.Flags(); err == nil {
			var buf bytes.Buffer
			fss.PrintSections(&buf)
			buf.WriteTo(cmd.OutOrStdout())
			return nil
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), cmd.Flags().FlagUsages())
	return nil
}

// Run executes RunFunc against os.Args[1:]. --version is handled by
// RunFunc's own options.Aggregator (spec.md §6's aggregator-provided
// short-circuit), not here: flag parsing is disabled on the underlying
// cobra command, so its own --version flag is never populated.
func (a *App) Run() error {
	return a.cmd.Execute()
}

// Command returns the underlying *cobra.Command, for embedding as a
// subcommand or for tests driving Execute directly.
func (a *App) Command() *cobra.Command { return a.cmd }

// Banner renders a one-line identification string, in the spirit of
// echoryn's cmd-local Banner() helpers.
func Banner(name string) string {
	return fmt.Sprintf("%s (%s)", name, version.String())
}
