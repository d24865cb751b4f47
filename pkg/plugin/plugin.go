// Package plugin implements the plugin registry (spec component C3)
// and lifecycle engine (spec component C4): a process-wide directory of
// plugin descriptors, resolved per-application instances, and the
// registered -> initialized -> started -> stopped state machine that
// drives them while respecting declared dependency order.
//
// Grounded on echoryn/internal/hivemind/service/llm/provider/registry.go's
// name -> factory map (Register/MustRegister/Get/List/Range), generalized
// here to also carry declared dependency names and a per-application
// instance table.
package plugin

import (
	"sync/atomic"

	"github.com/spf13/pflag"
)

// State is a plugin instance's position in the lifecycle state machine.
// States are strictly monotonic: Registered < Initialized < Started < Stopped.
type State int32

const (
	StateRegistered State = iota
	StateInitialized
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Host is the subset of the application facade (spec component C6) a
// plugin may call back into. It is satisfied structurally by
// *application.Application, so this package never imports it.
type Host interface {
	// Post delegates to the reactor, per spec.md C6's post(priority, action).
	Post(priority int, action func()) error
	// Plugin looks up another activated plugin by name.
	Plugin(name string) (Plugin, bool)
}

// Plugin is the interface every plugin implements (spec.md §6 "Embedder API").
type Plugin interface {
	// Name returns this plugin's process-wide-unique name.
	Name() string
	// Dependencies lists the names of plugins that must reach a given
	// state no later than this one does, at both init and startup time.
	Dependencies() []string

	// SetProgramOptions lets the plugin contribute option descriptors to
	// the two pflag groups the options aggregator (C5) exposes: cliOnly
	// for command-line-only flags, shared for flags that are also
	// settable via --config-file.
	SetProgramOptions(cliOnly, shared *pflag.FlagSet)

	// Initialize is invoked once, with the merged options values map,
	// after all declared dependencies have themselves been initialized.
	Initialize(host Host, values map[string]any) error
	// Startup is invoked once, after all declared dependencies have
	// themselves been started.
	Startup(host Host) error
	// Shutdown is invoked once, during the reverse-activation-order walk.
	Shutdown() error

	// State reports the current lifecycle state.
	State() State
	// SetState is called only by the lifecycle engine.
	SetState(State)
}

// Base is an embeddable struct implementing the State/SetState half of
// Plugin, so concrete plugins only need to write the four lifecycle
// hooks and Name/Dependencies.
type Base struct {
	state atomic.Int32
}

func (b *Base) State() State     { return State(b.state.Load()) }
func (b *Base) SetState(s State) { b.state.Store(int32(s)) }
