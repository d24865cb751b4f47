package application_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/pluginkit/internal/plugins/a"
	"github.com/kiosk404/pluginkit/internal/plugins/b"
	"github.com/kiosk404/pluginkit/pkg/application"
	"github.com/kiosk404/pluginkit/pkg/log"
	"github.com/kiosk404/pluginkit/pkg/plugin"
)

func newFixtureApp(t *testing.T, shutdownCount *int) *application.Application {
	t.Helper()
	r := plugin.NewRegistry()
	require.NoError(t, b.Register(r, shutdownCount))
	require.NoError(t, a.Register(r, shutdownCount))
	return application.New("test", r, log.Discard())
}

func TestOptionsReachPluginsVerbatimEndToEnd(t *testing.T) {
	app := newFixtureApp(t, nil)
	noOp, err := app.Initialize([]string{
		"--plugin", "a", "--dbsize", "10000", "--readonly",
		"--plugin", "b", "--endpoint", "127.0.0.1:55",
	})
	require.NoError(t, err)
	assert.False(t, noOp)
	require.NoError(t, app.Startup())

	pa, err := application.GetPlugin[*a.Plugin](app, "a")
	require.NoError(t, err)
	assert.Equal(t, 10000, pa.DBSize)
	assert.True(t, pa.ReadOnly)

	pb, err := application.GetPlugin[*b.Plugin](app, "b")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:55", pb.Endpoint)
}

func TestTransitiveActivationEndToEnd(t *testing.T) {
	app := newFixtureApp(t, nil)
	_, err := app.Initialize([]string{"--plugin", "a"})
	require.NoError(t, err)
	require.NoError(t, app.Startup())

	_, err = application.GetPlugin[*b.Plugin](app, "b")
	require.NoError(t, err, "b should have been activated transitively via a's dependency")
}

func TestExceptionInExecTriggersFullShutdown(t *testing.T) {
	shutdownCount := 0
	app := newFixtureApp(t, &shutdownCount)
	_, err := app.Initialize([]string{"--plugin", "a"})
	require.NoError(t, err)
	require.NoError(t, app.Startup())

	boom := errors.New("boom")
	require.NoError(t, app.Post(10, func() { panic(boom) }))

	err = app.Exec()
	require.Error(t, err)
	assert.Equal(t, 2, shutdownCount)
}

func TestQuitDrainsQueueEndToEnd(t *testing.T) {
	app := newFixtureApp(t, nil)
	_, err := app.Initialize([]string{"--plugin", "a"})
	require.NoError(t, err)
	require.NoError(t, app.Startup())

	executed := 0
	for i := 0; i < 100; i++ {
		require.NoError(t, app.Post(0, func() {
			executed++
			time.Sleep(5 * time.Millisecond)
		}))
	}

	done := make(chan error, 1)
	go func() { done <- app.Exec() }()

	time.Sleep(20 * time.Millisecond)
	app.Quit()

	require.NoError(t, <-done)
	assert.Less(t, executed, 100)
}

func TestScopedLifetimeReuse(t *testing.T) {
	for i := 0; i < 2; i++ {
		shutdownCount := 0
		scoped := application.NewScoped("test", func() *plugin.Registry {
			r := plugin.NewRegistry()
			require.NoError(t, b.Register(r, &shutdownCount))
			require.NoError(t, a.Register(r, &shutdownCount))
			return r
		}(), log.Discard())

		_, err := scoped.Initialize([]string{"--plugin", "a"})
		require.NoError(t, err)
		require.NoError(t, scoped.Startup())
		scoped.Run()

		require.NoError(t, scoped.Close())
		assert.Equal(t, 2, shutdownCount)
	}
}

func TestEmptyArgvActivatesNothing(t *testing.T) {
	app := newFixtureApp(t, nil)
	noOp, err := app.Initialize(nil)
	require.NoError(t, err)
	assert.False(t, noOp)
	_, ok := app.Plugin("a")
	assert.False(t, ok)
	_, ok = app.Plugin("b")
	assert.False(t, ok)

	done := make(chan error, 1)
	go func() { done <- app.Exec() }()
	app.Quit()
	require.NoError(t, <-done)
}

func TestUnknownPluginNameFailsInitialize(t *testing.T) {
	app := newFixtureApp(t, nil)
	_, err := app.Initialize([]string{"--plugin", "ghost"})
	require.Error(t, err)
}

func TestConfigFileWatchStartsAndStopsCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pluginkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: 127.0.0.1:55\n"), 0o644))

	app := newFixtureApp(t, nil)
	_, err := app.Initialize([]string{"--plugin", "b", "--config-file", path})
	require.NoError(t, err)
	require.NoError(t, app.Startup())

	done := make(chan error, 1)
	go func() { done <- app.Exec() }()
	app.Quit()
	require.NoError(t, <-done)

	// Quit already stopped the watcher; calling it again via a second
	// Quit (a legitimate no-op per its contract) must not panic or block.
	app.Quit()
}

// leafPlugin is a minimal dependency-free plugin used to observe
// shutdown fan-out from a facade-level Startup failure.
type leafPlugin struct {
	plugin.Base
	name          string
	startErr      error
	shutdownCount *int
}

func (p *leafPlugin) Name() string                                     { return p.name }
func (p *leafPlugin) Dependencies() []string                           { return nil }
func (p *leafPlugin) SetProgramOptions(cliOnly, shared *pflag.FlagSet) {}
func (p *leafPlugin) Initialize(plugin.Host, map[string]any) error     { return nil }
func (p *leafPlugin) Startup(plugin.Host) error                        { return p.startErr }
func (p *leafPlugin) Shutdown() error {
	if p.shutdownCount != nil {
		*p.shutdownCount++
	}
	return nil
}

func TestStartupFailureShutsDownAlreadyStartedDependency(t *testing.T) {
	shutdownCount := 0
	r := plugin.NewRegistry()
	require.NoError(t, r.Register("dep", nil, func(plugin.Host) plugin.Plugin {
		return &leafPlugin{name: "dep", shutdownCount: &shutdownCount}
	}))
	require.NoError(t, r.Register("top", []string{"dep"}, func(plugin.Host) plugin.Plugin {
		return &leafPlugin{name: "top", startErr: errors.New("startup failed"), shutdownCount: &shutdownCount}
	}))

	app := application.New("test", r, log.Discard())
	_, err := app.Initialize([]string{"--plugin", "top"})
	require.NoError(t, err)

	err = app.Startup()
	require.Error(t, err)

	// "dep" reached Started before "top" failed; the facade must have
	// shut it down rather than leaving it running. "top" had reached
	// Initialized, so its stop hook runs as well: two shutdowns in all.
	dep, err := application.GetPlugin[*leafPlugin](app, "dep")
	require.NoError(t, err)
	assert.Equal(t, plugin.StateStopped, dep.State())
	assert.Equal(t, 2, shutdownCount)
}

func TestInitializeFailureShutsDownAlreadyInitializedDependency(t *testing.T) {
	shutdownCount := 0
	r := plugin.NewRegistry()
	require.NoError(t, r.Register("dep", nil, func(plugin.Host) plugin.Plugin {
		return &leafPlugin{name: "dep", shutdownCount: &shutdownCount}
	}))
	require.NoError(t, r.Register("top", []string{"dep"}, func(plugin.Host) plugin.Plugin {
		return &failingInitPlugin{name: "top", shutdownCount: &shutdownCount}
	}))

	app := application.New("test", r, log.Discard())
	_, err := app.Initialize([]string{"--plugin", "top"})
	require.Error(t, err)

	dep, err := application.GetPlugin[*leafPlugin](app, "dep")
	require.NoError(t, err)
	assert.Equal(t, plugin.StateStopped, dep.State())
	assert.Equal(t, 1, shutdownCount)
}

// failingInitPlugin depends on "dep" but fails its own Initialize hook,
// after "dep" has already reached Initialized.
type failingInitPlugin struct {
	plugin.Base
	name          string
	shutdownCount *int
}

func (p *failingInitPlugin) Name() string                                     { return p.name }
func (p *failingInitPlugin) Dependencies() []string                           { return []string{"dep"} }
func (p *failingInitPlugin) SetProgramOptions(cliOnly, shared *pflag.FlagSet) {}
func (p *failingInitPlugin) Initialize(plugin.Host, map[string]any) error {
	return errors.New("init failed")
}
func (p *failingInitPlugin) Startup(plugin.Host) error { return nil }
func (p *failingInitPlugin) Shutdown() error {
	if p.shutdownCount != nil {
		*p.shutdownCount++
	}
	return nil
}
