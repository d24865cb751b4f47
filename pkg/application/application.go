// Package application implements the Application Facade (spec component
// C6): the object an embedder holds that wires the options aggregator
// (C5), the plugin registry (C3) and lifecycle engine (C4), and the
// reactor (C2) together behind initialize/startup/exec/quit/post.
//
// Grounded on the functional-options App builder implied by
// echoryn/internal/golem/app.go, generalized so the single opaque
// RunFunc becomes the spec's four-phase lifecycle.
package application

import (
	"fmt"
	"os"
	"sync"

	"github.com/kiosk404/pluginkit/pkg/apperr"
	"github.com/kiosk404/pluginkit/pkg/log"
	"github.com/kiosk404/pluginkit/pkg/options"
	"github.com/kiosk404/pluginkit/pkg/plugin"
	"github.com/kiosk404/pluginkit/pkg/queue"
	"github.com/kiosk404/pluginkit/pkg/reactor"
	"github.com/kiosk404/pluginkit/pkg/version"
)

// Application wires C2-C5 together behind Initialize/Startup/Exec/Quit/Post.
type Application struct {
	name string

	registry *plugin.Registry
	engine   *plugin.Engine
	reactor  *reactor.Reactor
	agg      *options.Aggregator
	log      log.Logger

	mu       sync.Mutex
	active   []string
	quitOnce sync.Once

	watchMu   sync.Mutex
	watchStop func()
}

// New builds an Application reading plugin descriptors from registry. A
// nil registry uses the process-wide default registry; a nil logger
// discards output. Each Application owns its own plugin instance table:
// the registry's descriptors are process-wide and reusable across
// Applications, but no per-application state leaks between them.
func New(name string, registry *plugin.Registry, logger log.Logger) *Application {
	if registry == nil {
		registry = plugin.Default()
	}
	if logger == nil {
		logger = log.Discard()
	}
	a := &Application{
		name:     name,
		registry: registry,
		reactor:  reactor.New(logger),
		agg:      options.NewAggregator(registry),
		log:      logger,
	}
	a.engine = plugin.NewEngine(registry, a, logger)
	return a
}

// Post implements plugin.Host by forwarding to the owned reactor.
func (a *Application) Post(priority int, action func()) error {
	return a.reactor.Post(priority, queue.Action(action))
}

// Plugin implements plugin.Host.
func (a *Application) Plugin(name string) (plugin.Plugin, bool) {
	return a.engine.Get(name)
}

// Initialize parses argv (excluding the program name) and initializes
// every plugin named by a --plugin flag, transitively including its
// dependency closure. noOp is true when --help or --version
// short-circuited parsing (the usage text or the version string is then
// printed to stdout); the embedder should treat that as a clean exit
// rather than an error.
func (a *Application) Initialize(argv []string) (noOp bool, err error) {
	result, err := a.agg.Parse(argv)
	if err != nil {
		wrapped := apperr.Wrap(apperr.KindConfig, "Application.Initialize", err)
		a.log.WithField("app", a.name).Error("option parse error: ", wrapped)
		return false, wrapped
	}
	if result.NoOp {
		if result.Usage != "" {
			fmt.Fprint(os.Stdout, result.Usage)
		} else {
			fmt.Fprintln(os.Stdout, version.String())
		}
		return true, nil
	}

	for _, name := range result.ActivatePlugins {
		if _, ok := a.registry.Find(name); !ok {
			wrapped := apperr.Wrap(apperr.KindConfig, "Application.Initialize",
				fmt.Errorf("%w: %s", apperr.ErrUnknownPlugin, name))
			a.log.WithField("app", a.name).Error("unknown plugin requested: ", wrapped)
			return false, wrapped
		}
	}

	a.mu.Lock()
	a.active = result.ActivatePlugins
	a.mu.Unlock()

	for _, name := range result.ActivatePlugins {
		if err := a.engine.Initialize(name, result.Values); err != nil {
			return false, a.unwind(err)
		}
	}

	if result.ConfigFile != "" {
		stop, watchErr := options.WatchConfigFile(result.ConfigFile, a.log)
		if watchErr != nil {
			a.log.WithField("app", a.name).Warn("config file watch not started: ", watchErr)
		} else {
			a.watchMu.Lock()
			a.watchStop = stop
			a.watchMu.Unlock()
		}
	}
	return false, nil
}

// Startup advances every activated plugin, and its dependency closure,
// from Initialized to Started, in dependency order.
func (a *Application) Startup() error {
	a.mu.Lock()
	active := append([]string(nil), a.active...)
	a.mu.Unlock()

	for _, name := range active {
		if err := a.engine.Startup(name); err != nil {
			return a.unwind(err)
		}
	}
	return nil
}

// unwind shuts down every plugin that reached Initialized, so a failure
// partway through Initialize/Startup never leaves a partially-started
// plugin set running (spec.md §7: "a failure path always leaves every
// started plugin stopped exactly once"). A shutdown error is logged,
// not returned, so the embedder still sees the original cause.
func (a *Application) unwind(cause error) error {
	if shutdownErr := a.engine.ShutdownAll(); shutdownErr != nil {
		a.log.WithField("app", a.name).Error("shutdown error while unwinding a failed activation: ", shutdownErr)
	}
	return cause
}

// Exec runs the reactor on the calling goroutine until Quit is called or
// a posted action raises. Regardless of how the reactor returns, every
// started plugin is shut down, in reverse activation order, before Exec
// itself returns. The first error observed is returned; a shutdown
// error that occurs after an exec error is logged rather than returned,
// so the embedder isn't told about a phase it has already moved past.
func (a *Application) Exec() error {
	defer a.stopConfigWatch()

	execErr := a.reactor.Run()
	a.reactor.Drain()

	if shutdownErr := a.engine.ShutdownAll(); shutdownErr != nil {
		if execErr == nil {
			return shutdownErr
		}
		a.log.WithField("app", a.name).Error("shutdown error after exec error: ", shutdownErr)
	}
	return execErr
}

// Quit is safe to call from any goroutine, including concurrently with
// Exec or with itself: it drains the queue, discarding any not-yet-run
// posted work, and stops the reactor loop. Repeated calls are no-ops.
func (a *Application) Quit() {
	a.quitOnce.Do(func() {
		a.reactor.Drain()
		a.reactor.Stop()
		a.stopConfigWatch()
	})
}

// stopConfigWatch stops the --config-file drift watcher, if one was
// started by Initialize. Safe to call more than once or when none was
// ever started.
func (a *Application) stopConfigWatch() {
	a.watchMu.Lock()
	stop := a.watchStop
	a.watchStop = nil
	a.watchMu.Unlock()
	if stop != nil {
		stop()
	}
}

// GetPlugin performs a type-safe plugin lookup, resolving name via app
// and asserting the result implements P.
func GetPlugin[P plugin.Plugin](app *Application, name string) (P, error) {
	var zero P
	p, ok := app.Plugin(name)
	if !ok {
		return zero, apperr.Wrap(apperr.KindRuntime, "GetPlugin",
			fmt.Errorf("%w: %s", apperr.ErrUnknownPlugin, name))
	}
	typed, ok := p.(P)
	if !ok {
		return zero, apperr.Wrap(apperr.KindRuntime, "GetPlugin",
			fmt.Errorf("plugin %q does not implement the requested type", name))
	}
	return typed, nil
}

// Scoped wraps an Application with a destructor-style Close: it enforces
// quit-then-join before treating the application's resources as
// released, and is the Go analogue of the spec's scoped-lifetime guard
// (reactor stopped and joined before plugin/reactor state is released).
type Scoped struct {
	*Application

	once     sync.Once
	execErr  error
	execDone chan struct{}
}

// NewScoped builds a Scoped application; call Run to start Exec.
func NewScoped(name string, registry *plugin.Registry, logger log.Logger) *Scoped {
	return &Scoped{
		Application: New(name, registry, logger),
		execDone:    make(chan struct{}),
	}
}

// Run starts Exec on a background goroutine. Close blocks until it
// returns.
func (s *Scoped) Run() {
	go func() {
		s.execErr = s.Application.Exec()
		close(s.execDone)
	}()
}

// Close quits the application and blocks until Exec has returned and
// every plugin has been shut down. Repeated calls return the same
// result.
func (s *Scoped) Close() error {
	s.once.Do(func() {
		s.Application.Quit()
		<-s.execDone
	})
	return s.execErr
}
