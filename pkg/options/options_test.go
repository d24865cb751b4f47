package options_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/pluginkit/pkg/options"
	"github.com/kiosk404/pluginkit/pkg/plugin"
)

type fixtureA struct{ plugin.Base }

func (fixtureA) Name() string           { return "a" }
func (fixtureA) Dependencies() []string { return []string{"b"} }
func (fixtureA) SetProgramOptions(cliOnly, shared *pflag.FlagSet) {
	cliOnly.Int("dbsize", 1024, "size of the in-memory database")
	cliOnly.Bool("readonly", false, "open the database read-only")
}
func (fixtureA) Initialize(plugin.Host, map[string]any) error { return nil }
func (fixtureA) Startup(plugin.Host) error                    { return nil }
func (fixtureA) Shutdown() error                              { return nil }

type fixtureB struct{ plugin.Base }

func (fixtureB) Name() string          { return "b" }
func (fixtureB) Dependencies() []string { return nil }
func (fixtureB) SetProgramOptions(cliOnly, shared *pflag.FlagSet) {
	shared.String("endpoint", "127.0.0.1:80", "listen address")
}
func (fixtureB) Initialize(plugin.Host, map[string]any) error { return nil }
func (fixtureB) Startup(plugin.Host) error                    { return nil }
func (fixtureB) Shutdown() error                              { return nil }

func newFixtureRegistry(t *testing.T) *plugin.Registry {
	t.Helper()
	r := plugin.NewRegistry()
	require.NoError(t, r.Register("a", []string{"b"}, func(plugin.Host) plugin.Plugin { return &fixtureA{} }))
	require.NoError(t, r.Register("b", nil, func(plugin.Host) plugin.Plugin { return &fixtureB{} }))
	return r
}

func TestParseProducesTypedValuesFromRegisteredPlugins(t *testing.T) {
	agg := options.NewAggregator(newFixtureRegistry(t))

	result, err := agg.Parse([]string{
		"--plugin", "a", "--dbsize", "10000", "--readonly",
		"--plugin", "b", "--endpoint", "127.0.0.1:55",
	})
	require.NoError(t, err)
	assert.False(t, result.NoOp)

	assert.Equal(t, 10000, result.Values["dbsize"])
	assert.Equal(t, true, result.Values["readonly"])
	assert.Equal(t, "127.0.0.1:55", result.Values["endpoint"])
	assert.Equal(t, []string{"a", "b"}, result.ActivatePlugins)
}

func TestParseDedupesRepeatedPluginNames(t *testing.T) {
	agg := options.NewAggregator(newFixtureRegistry(t))
	result, err := agg.Parse([]string{"--plugin", "a", "--plugin", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.ActivatePlugins)
}

func TestHelpShortCircuitsAsNoOp(t *testing.T) {
	agg := options.NewAggregator(newFixtureRegistry(t))
	result, err := agg.Parse([]string{"--help"})
	require.NoError(t, err)
	assert.True(t, result.NoOp)
	assert.NotEmpty(t, result.Usage)
}

func TestVersionShortCircuitsAsNoOp(t *testing.T) {
	agg := options.NewAggregator(newFixtureRegistry(t))
	result, err := agg.Parse([]string{"--version"})
	require.NoError(t, err)
	assert.True(t, result.NoOp)
}

func TestDuplicateOptionAcrossPluginsIsRejected(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register("a", nil, func(plugin.Host) plugin.Plugin { return &fixtureA{} }))
	require.NoError(t, r.Register("c", nil, func(plugin.Host) plugin.Plugin {
		return &conflictingPlugin{}
	}))
	agg := options.NewAggregator(r)
	_, err := agg.Parse(nil)
	require.Error(t, err)
}

type conflictingPlugin struct{ plugin.Base }

func (conflictingPlugin) Name() string          { return "c" }
func (conflictingPlugin) Dependencies() []string { return nil }
func (conflictingPlugin) SetProgramOptions(cliOnly, shared *pflag.FlagSet) {
	cliOnly.Int("dbsize", 0, "conflicts with fixtureA's dbsize")
}
func (conflictingPlugin) Initialize(plugin.Host, map[string]any) error { return nil }
func (conflictingPlugin) Startup(plugin.Host) error                    { return nil }
func (conflictingPlugin) Shutdown() error                              { return nil }

func TestFlagsGroupsByPlugin(t *testing.T) {
	agg := options.NewAggregator(newFixtureRegistry(t))
	fss, err := agg.Flags()
	require.NoError(t, err)
	assert.Contains(t, fss.Order, "core")
	assert.Contains(t, fss.Order, "a:cli")
	assert.Contains(t, fss.Order, "b:shared")
}

func writeConfigFile(t *testing.T, endpoint string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pluginkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: "+endpoint+"\n"), 0o644))
	return path
}

func TestConfigFileSuppliesUnsetSharedFlag(t *testing.T) {
	agg := options.NewAggregator(newFixtureRegistry(t))
	path := writeConfigFile(t, "10.0.0.1:9090")

	result, err := agg.Parse([]string{"--plugin", "b", "--config-file", path})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:9090", result.Values["endpoint"])
	assert.Equal(t, path, result.ConfigFile)
}

func TestConfigFileDoesNotLeakBetweenAggregators(t *testing.T) {
	firstPath := writeConfigFile(t, "10.0.0.1:1111")
	secondPath := writeConfigFile(t, "10.0.0.2:2222")

	first := options.NewAggregator(newFixtureRegistry(t))
	firstResult, err := first.Parse([]string{"--plugin", "b", "--config-file", firstPath})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:1111", firstResult.Values["endpoint"])

	// A second, independently constructed Aggregator reading a different
	// config file must never observe the first one's bound values
	// (spec.md §8 property 9: no leaked state between sequentially
	// constructed applications).
	second := options.NewAggregator(newFixtureRegistry(t))
	secondResult, err := second.Parse([]string{"--plugin", "b", "--config-file", secondPath})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2:2222", secondResult.Values["endpoint"])
}
