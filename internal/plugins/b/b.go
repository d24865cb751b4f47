// Package b is an illustrative leaf plugin (spec.md §8's "B"): it
// exposes a single shared --endpoint option and has no dependencies.
package b

import (
	"github.com/spf13/pflag"

	"github.com/kiosk404/pluginkit/pkg/plugin"
)

const Name = "b"

// Plugin is a minimal plugin with one option and no dependency on any
// other plugin.
type Plugin struct {
	plugin.Base

	Endpoint string

	ShutdownCount *int
}

// New constructs a B plugin. shutdownCount, if non-nil, is incremented
// once on Shutdown, for tests asserting shutdown fan-out (spec.md §8
// properties 6-7).
func New(shutdownCount *int) *Plugin {
	return &Plugin{ShutdownCount: shutdownCount}
}

func (p *Plugin) Name() string           { return Name }
func (p *Plugin) Dependencies() []string { return nil }

func (p *Plugin) SetProgramOptions(cliOnly, shared *pflag.FlagSet) {
	shared.StringVar(&p.Endpoint, "endpoint", "127.0.0.1:8080", "address B listens on")
}

func (p *Plugin) Initialize(host plugin.Host, values map[string]any) error {
	if v, ok := values["endpoint"].(string); ok {
		p.Endpoint = v
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

// Register adds B's descriptor to registry.
func Register(registry *plugin.Registry, shutdownCount *int) error {
	return registry.Register(Name, nil, func(plugin.Host) plugin.Plugin {
		return New(shutdownCount)
	})
}
