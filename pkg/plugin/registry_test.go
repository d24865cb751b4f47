package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/pluginkit/pkg/plugin"
)

func TestRegisterIsIdempotent(t *testing.T) {
	r := plugin.NewRegistry()
	factory := func(h plugin.Host) plugin.Plugin { return &stubPlugin{name: "a"} }

	require.NoError(t, r.Register("a", []string{"b"}, factory))
	require.NoError(t, r.Register("a", []string{"b"}, factory))

	d, ok := r.Find("a")
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, d.Dependencies)
}

func TestRegisterRejectsConflictingRedeclaration(t *testing.T) {
	r := plugin.NewRegistry()
	factory := func(h plugin.Host) plugin.Plugin { return &stubPlugin{name: "a"} }

	require.NoError(t, r.Register("a", []string{"b"}, factory))
	err := r.Register("a", []string{"c"}, factory)
	require.Error(t, err)
}

func TestFindUnknownPlugin(t *testing.T) {
	r := plugin.NewRegistry()
	_, ok := r.Find("nope")
	assert.False(t, ok)
}

func TestAllListsEveryRegisteredDescriptor(t *testing.T) {
	r := plugin.NewRegistry()
	factory := func(h plugin.Host) plugin.Plugin { return &stubPlugin{name: "x"} }
	require.NoError(t, r.Register("a", nil, factory))
	require.NoError(t, r.Register("b", nil, factory))

	names := make(map[string]bool)
	for _, d := range r.All() {
		names[d.Name] = true
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])
}
