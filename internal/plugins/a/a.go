// Package a is an illustrative plugin (spec.md §8's "A") depending on
// plugin b: it exposes --dbsize and --readonly cli-only options and
// exercises the dependency-closure activation and reverse shutdown
// ordering properties.
package a

import (
	"github.com/spf13/pflag"

	"github.com/kiosk404/pluginkit/internal/plugins/b"
	"github.com/kiosk404/pluginkit/pkg/plugin"
)

const Name = "a"

// Plugin depends on b.Plugin and exposes two cli-only options.
type Plugin struct {
	plugin.Base

	DBSize   int
	ReadOnly bool

	ShutdownCount *int
}

// New constructs an A plugin. shutdownCount, if non-nil, is incremented
// once on Shutdown.
func New(shutdownCount *int) *Plugin {
	return &Plugin{ShutdownCount: shutdownCount}
}

func (p *Plugin) Name() string           { return Name }
func (p *Plugin) Dependencies() []string { return []string{b.Name} }

func (p *Plugin) SetProgramOptions(cliOnly, shared *pflag.FlagSet) {
	cliOnly.IntVar(&p.DBSize, "dbsize", 1024, "number of rows the in-memory database preallocates")
	cliOnly.BoolVar(&p.ReadOnly, "readonly", false, "open the database read-only")
}

func (p *Plugin) Initialize(host plugin.Host, values map[string]any) error {
	if v, ok := values["dbsize"].(int); ok {
		p.DBSize = v
	}
	if v, ok := values["readonly"].(bool); ok {
		p.ReadOnly = v
	}
	return nil
}

func (p *Plugin) Startup(host plugin.Host) error { return nil }

func (p *Plugin) Shutdown() error {
	if p.ShutdownCount != nil {
		*p.ShutdownCount++
	}
	return nil
}

// Register adds A's descriptor to registry.
func Register(registry *plugin.Registry, shutdownCount *int) error {
	return registry.Register(Name, []string{b.Name}, func(plugin.Host) plugin.Plugin {
		return New(shutdownCount)
	})
}
