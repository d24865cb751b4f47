// Package options implements the options aggregator (spec component C5):
// it collects option descriptors from every registered plugin, merges
// parsed CLI/config-file values into one map, and owns the built-in
// --plugin/--help/--version/--config-file flags.
//
// Grounded on echoryn/internal/pkg/options/{plugins_options.go,
// model_options.go} and echoryn/internal/hivemind/options/options.go's
// `Flags() (fss cliflag.NamedFlagSets)` / per-group `AddFlags(fs
// *pflag.FlagSet)` shape.
package options

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kiosk404/pluginkit/pkg/apperr"
	"github.com/kiosk404/pluginkit/pkg/plugin"
	"github.com/kiosk404/pluginkit/pkg/utils/cliflag"
)

// Result is what Parse produces.
type Result struct {
	// NoOp is true when --help or --version was requested: the embedder
	// should treat initialize() as a successful no-op and exit cleanly.
	NoOp bool
	// Usage is the rendered --help text, set only when NoOp was
	// triggered by --help.
	Usage string
	// Values is the merged (name -> parsed value) map handed to every
	// plugin's initializer, verbatim, typed by each flag's pflag.Value.Type().
	Values map[string]any
	// ActivatePlugins are the (deduplicated) names passed via --plugin.
	ActivatePlugins []string
	// ConfigFile is the --config-file path, set only once it has been
	// successfully read, so the facade knows to start a drift watcher.
	ConfigFile string
}

// Aggregator collects option descriptors from every plugin registered
// in registry and merges parsed values into one map.
//
// Each call to Flags/Parse rebuilds its flag sets from scratch: plugin
// descriptors are stateless, and pflag panics on a redefined flag name,
// so nothing here is safe to reuse across calls.
type Aggregator struct {
	registry *plugin.Registry
}

// NewAggregator builds an Aggregator reading descriptors from registry.
// A nil registry uses the process-wide default registry.
func NewAggregator(registry *plugin.Registry) *Aggregator {
	if registry == nil {
		registry = plugin.Default()
	}
	return &Aggregator{registry: registry}
}

// core registers the built-in --help/--version/--config-file/--plugin
// flags on fs and returns pointers to their bound values.
func core(fs *pflag.FlagSet) (help, version *bool, configFile *string, pluginArg *[]string) {
	help = fs.BoolP("help", "h", false, "Print usage information and exit.")
	version = fs.Bool("version", false, "Print version information and exit.")
	configFile = fs.String("config-file", "", "Path to a config file supplying shared option values.")
	pluginArg = fs.StringArray("plugin", nil, "Activate the named plugin (repeatable).")
	return
}

// Flags returns the grouped flag sets collected from every registered
// plugin descriptor, for usage/help rendering.
func (a *Aggregator) Flags() (cliflag.NamedFlagSets, error) {
	var fss cliflag.NamedFlagSets
	core(fss.FlagSet("core"))
	if _, err := a.collect(&fss); err != nil {
		return cliflag.NamedFlagSets{}, err
	}
	return fss, nil
}

// merged builds one flat pflag.FlagSet out of the core flags plus every
// registered plugin's contributed cli-only and shared flags, rejecting
// duplicate flag names across plugins (spec.md §6: "duplicates across
// plugins are a registration error").
func (a *Aggregator) merged() (fs *pflag.FlagSet, help, version *bool, configFile *string, pluginArg *[]string, err error) {
	var fss cliflag.NamedFlagSets
	help, version, configFile, pluginArg = core(fss.FlagSet("core"))

	out := pflag.NewFlagSet("pluginkit", pflag.ContinueOnError)
	out.SetNormalizeFunc(cliflag.WordSepNormalizeFunc)
	out.AddFlagSet(fss.FlagSet("core"))

	if _, err := a.collect(&fss); err != nil {
		return nil, nil, nil, nil, nil, err
	}
	for _, name := range fss.Order {
		if name == "core" {
			continue
		}
		out.AddFlagSet(fss.FlagSets[name])
	}
	return out, help, version, configFile, pluginArg, nil
}

// collect populates fss with one ":cli" and one ":shared" group per
// registered plugin, rejecting flag names that collide across plugins
// (or with the built-in core flags already present in fss).
func (a *Aggregator) collect(fss *cliflag.NamedFlagSets) (*cliflag.NamedFlagSets, error) {
	owner := map[string]string{
		"help": "core", "version": "core", "config-file": "core", "plugin": "core",
	}

	for _, d := range a.registry.All() {
		// A prototype instance is created (without a live host) purely
		// so its SetProgramOptions hook can register flags; it is never
		// initialized or started.
		prototype := d.Factory(nil)

		cliOnly := fss.FlagSet(d.Name + ":cli")
		shared := fss.FlagSet(d.Name + ":shared")
		prototype.SetProgramOptions(cliOnly, shared)

		for _, group := range []*pflag.FlagSet{cliOnly, shared} {
			var dupErr error
			group.VisitAll(func(f *pflag.Flag) {
				if dupErr != nil {
					return
				}
				if first, ok := owner[f.Name]; ok && first != d.Name {
					dupErr = apperr.Wrap(apperr.KindConfig, "options.collect",
						fmt.Errorf("%w: %q contributed by both %s and %s",
							apperr.ErrDuplicateOption, f.Name, first, d.Name))
					return
				}
				owner[f.Name] = d.Name
			})
			if dupErr != nil {
				return nil, dupErr
			}
		}
	}

	return fss, nil
}

// Parse parses argv (excluding the program name) against every
// registered plugin's contributed options plus the built-in core flags.
func (a *Aggregator) Parse(argv []string) (Result, error) {
	fs, help, version, configFile, pluginArg, err := a.merged()
	if err != nil {
		return Result{}, err
	}

	if err := fs.Parse(argv); err != nil {
		return Result{}, apperr.Wrap(apperr.KindConfig, "options.Parse", err)
	}

	if *help {
		return Result{NoOp: true, Usage: fs.FlagUsages()}, nil
	}
	if *version {
		return Result{NoOp: true}, nil
	}

	// A fresh *viper.Viper per call, never the package-level singleton:
	// two sequentially-constructed Applications in the same process must
	// not share config state (spec.md §8 property 9).
	var v *viper.Viper
	if *configFile != "" {
		v = viper.New()
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return Result{}, apperr.Wrap(apperr.KindConfig, "options.Parse", err)
		}
		if err := v.BindPFlags(fs); err != nil {
			return Result{}, apperr.Wrap(apperr.KindConfig, "options.Parse", err)
		}
	}

	values := make(map[string]any)
	fs.VisitAll(func(f *pflag.Flag) {
		switch f.Name {
		case "help", "version", "config-file", "plugin":
			return
		}
		if v != nil && !f.Changed && v.IsSet(f.Name) {
			values[f.Name] = v.Get(f.Name)
			return
		}
		values[f.Name] = valueFromFlag(f)
	})

	return Result{
		Values:          values,
		ActivatePlugins: dedupe(*pluginArg),
		ConfigFile:      *configFile,
	}, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// valueFromFlag converts a parsed pflag.Flag back into a typed Go value,
// so the merged values map carries ints/bools/strings/slices rather
// than everything collapsed to strings (spec.md §8 property 1: "A.dbsize
// = 10000", not "10000").
func valueFromFlag(f *pflag.Flag) any {
	if sv, ok := f.Value.(pflag.SliceValue); ok && f.Value.Type() != "stringToString" {
		return sv.GetSlice()
	}
	switch f.Value.Type() {
	case "bool":
		v, _ := strconv.ParseBool(f.Value.String())
		return v
	case "int", "int8", "int16", "int32":
		v, _ := strconv.ParseInt(f.Value.String(), 10, 64)
		return int(v)
	case "int64":
		v, _ := strconv.ParseInt(f.Value.String(), 10, 64)
		return v
	case "uint", "uint8", "uint16", "uint32", "uint64":
		v, _ := strconv.ParseUint(f.Value.String(), 10, 64)
		return v
	case "float32", "float64":
		v, _ := strconv.ParseFloat(f.Value.String(), 64)
		return v
	default:
		return f.Value.String()
	}
}
