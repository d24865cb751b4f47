// Package cliflag groups pflag.FlagSets by name and normalizes flag
// names, mirroring the cliflag package echoryn/internal/echoctl/cmd/cmd.go
// imports (NamedFlagSets, WordSepNormalizeFunc) but whose implementation
// wasn't part of the retrieved source — recreated here from its call
// sites, a pattern shared with Kubernetes's k8s.io/component-base/cli/flag
// package.
package cliflag

import (
	"bytes"
	"strings"

	"github.com/spf13/pflag"
)

// NamedFlagSets stores flag sets in the order they were added, keyed by
// a human-readable group name (e.g. "grpc", "plugins", "models"), so
// usage output can print them grouped instead of alphabetically flat.
type NamedFlagSets struct {
	// Order preserves insertion order of FlagSet names.
	Order []string
	// FlagSets maps a name to its flag set.
	FlagSets map[string]*pflag.FlagSet
}

// FlagSet returns the flag set registered under name, creating it if it
// does not already exist. Every flag set handed out is normalized via
// WordSepNormalizeFunc at creation time, so a plugin declaring
// "db_size" and one declaring "db-size" normalize to the same flag name
// before the aggregator's cross-plugin duplicate check ever sees them.
func (nfs *NamedFlagSets) FlagSet(name string) *pflag.FlagSet {
	if nfs.FlagSets == nil {
		nfs.FlagSets = make(map[string]*pflag.FlagSet)
	}
	if _, ok := nfs.FlagSets[name]; !ok {
		fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
		fs.SetNormalizeFunc(WordSepNormalizeFunc)
		nfs.FlagSets[name] = fs
		nfs.Order = append(nfs.Order, name)
	}
	return nfs.FlagSets[name]
}

// PrintSections writes each flag set's usage, grouped under its name, to buf.
func (nfs *NamedFlagSets) PrintSections(buf *bytes.Buffer) {
	for _, name := range nfs.Order {
		fs := nfs.FlagSets[name]
		if !fs.HasFlags() {
			continue
		}
		buf.WriteString(strings.ToUpper(name[:1]) + name[1:] + " flags:\n")
		fs.SetOutput(buf)
		fs.PrintDefaults()
		buf.WriteString("\n")
	}
}

// WordSepNormalizeFunc replaces underscores with dashes in flag names,
// the canonical separator pflag conventionally expects. The options
// aggregator (C5) installs this on its merged flag set so a plugin that
// declares "db_size" and one that declares "db-size" can't both slip
// past the duplicate-flag check under different spellings.
func WordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	if strings.Contains(name, "_") {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	}
	return pflag.NormalizedName(name)
}
