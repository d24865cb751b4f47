package plugin

import (
	"fmt"
	"sync"

	"github.com/kiosk404/pluginkit/pkg/apperr"
	"github.com/kiosk404/pluginkit/pkg/log"
)

// Engine drives each plugin instance through the lifecycle state
// machine (spec component C4), enforcing dependency ordering on
// init/start/stop. One Engine is owned per application instance; the
// Registry it resolves descriptors from may be shared (spec.md §3
// "each (name) maps to at most one live instance at any time" is a
// per-Engine, i.e. per-application, invariant).
type Engine struct {
	registry *Registry
	host     Host
	log      log.Logger

	mu        sync.Mutex
	instances map[string]Plugin
	order     []string // activation order; shutdown walks it in reverse
	visiting  map[string]bool
}

// NewEngine constructs an Engine resolving descriptors from registry and
// attaching instances to host.
func NewEngine(registry *Registry, host Host, logger log.Logger) *Engine {
	if registry == nil {
		registry = Default()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{
		registry:  registry,
		host:      host,
		log:       logger,
		instances: make(map[string]Plugin),
		visiting:  make(map[string]bool),
	}
}

// Get returns the live instance for name, if one has been instantiated
// on this engine (i.e. initialize has been called on it at least once).
func (e *Engine) Get(name string) (Plugin, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.instances[name]
	return p, ok
}

// ActivationOrder returns the order plugins reached Initialized in.
func (e *Engine) ActivationOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

// Initialize recursively initializes name and every dependency it
// declares, in dependency-respecting order, then invokes name's own
// plugin_initialize hook with values. It is idempotent: initializing an
// already-initialized-or-later instance is a no-op (spec.md §4.4 step 1).
func (e *Engine) Initialize(name string, values map[string]any) error {
	e.mu.Lock()
	if e.visiting[name] {
		e.mu.Unlock()
		return apperr.Wrap(apperr.KindConfig, "plugin.Initialize",
			fmt.Errorf("%w: %s", apperr.ErrCycle, name))
	}
	if p, ok := e.instances[name]; ok && p.State() >= StateInitialized {
		e.mu.Unlock()
		return nil
	}
	e.visiting[name] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.visiting, name)
		e.mu.Unlock()
	}()

	desc, ok := e.registry.Find(name)
	if !ok {
		return apperr.Wrap(apperr.KindConfig, "plugin.Initialize",
			fmt.Errorf("%w: %s", apperr.ErrUnknownPlugin, name))
	}

	e.mu.Lock()
	inst, exists := e.instances[name]
	if !exists {
		inst = desc.Factory(e.host)
		e.instances[name] = inst
	}
	e.mu.Unlock()

	for _, dep := range desc.Dependencies {
		if err := e.Initialize(dep, values); err != nil {
			return err
		}
	}

	if err := inst.Initialize(e.host, values); err != nil {
		return apperr.Wrap(apperr.KindLifecycle, "plugin.Initialize:"+name, err)
	}
	inst.SetState(StateInitialized)

	// Only recorded in activation order once the hook has actually
	// succeeded: ShutdownAll walks this list, so a plugin whose own
	// Initialize failed must never appear in it (it never reached
	// Initialized, so it must never be shut down).
	e.mu.Lock()
	e.order = append(e.order, name)
	e.mu.Unlock()

	e.log.WithField("plugin", name).Debug("initialized")
	return nil
}

// Startup recursively starts name's dependencies first, then invokes
// name's own plugin_startup hook. Requires name to already be
// Initialized; a no-op if already Started or later.
func (e *Engine) Startup(name string) error {
	inst, ok := e.Get(name)
	if !ok {
		return apperr.Wrap(apperr.KindConfig, "plugin.Startup",
			fmt.Errorf("%w: %s", apperr.ErrUnknownPlugin, name))
	}
	if inst.State() >= StateStarted {
		return nil
	}

	desc, _ := e.registry.Find(name)
	for _, dep := range desc.Dependencies {
		if err := e.Startup(dep); err != nil {
			return err
		}
	}

	if err := inst.Startup(e.host); err != nil {
		return apperr.Wrap(apperr.KindLifecycle, "plugin.Startup:"+name, err)
	}
	inst.SetState(StateStarted)
	e.log.WithField("plugin", name).Debug("started")
	return nil
}

// ShutdownAll walks the activation order in reverse, invoking each
// plugin's stop hook. It never aborts the walk on error: every
// instance that reached Initialized is stopped exactly once, the first
// captured error is surfaced, and later ones are only logged
// (spec.md §4.4, §7).
func (e *Engine) ShutdownAll() error {
	order := e.ActivationOrder()
	var me apperr.MultiError

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		inst, ok := e.Get(name)
		if !ok || inst.State() == StateStopped {
			continue
		}
		err := inst.Shutdown()
		inst.SetState(StateStopped)
		if err != nil {
			wrapped := apperr.Wrap(apperr.KindShutdown, "plugin.Shutdown:"+name, err)
			if me.First != nil {
				e.log.WithField("plugin", name).Error("shutdown error (not surfaced): ", err)
			}
			me.Add(wrapped)
		} else {
			e.log.WithField("plugin", name).Debug("stopped")
		}
	}

	return me.ErrOrNil()
}
