package binding

import (
	"errors"
	"slices"
	"testing"

	"github.com/danmuck/weedcore/internal/bootstrap"
	"github.com/danmuck/weedcore/internal/testutil/testlog"
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder wraps a host's bootstrap so every name requested through the
// default getter is captured.
type recorder struct {
	names []string
}

func (r *recorder) wrap(boot bootstrap.Bootstrap) bootstrap.Bootstrap {
	return func(out *bootstrap.DefaultGetter, abiMin, abiMax, apiMin, apiMax int32) weed.Handle {
		var inner bootstrap.DefaultGetter
		info := boot(&inner, abiMin, abiMax, apiMin, apiMax)
		if inner != nil {
			*out = func(p weed.Handle, key string, idx int, dst any) weed.Status {
				r.names = append(r.names, key)
				return inner(p, key, idx, dst)
			}
		}
		return info
	}
}

func bind(t *testing.T, opts bootstrap.HostOptions, r VersionRanges) (*Core, *bootstrap.Host) {
	t.Helper()
	host := bootstrap.NewHost(opts)
	core, err := Bind(host.Bootstrap(), r)
	require.NoError(t, err)
	return core, host
}

func TestBindFullVersion(t *testing.T) {
	testlog.Start(t)

	core, _ := bind(t, bootstrap.HostOptions{}, DefaultRanges)
	assert.Equal(t, bootstrap.ABIVersion, core.ABI)
	assert.Equal(t, bootstrap.FilterAPIVersion, core.API)
	assert.True(t, core.Realloc.Present())
	assert.True(t, core.Calloc.Present())
	assert.True(t, core.Memmove.Present())
	assert.True(t, core.PlantFree.Present())
	assert.True(t, core.LeafDelete.Present())
}

func TestBindNoMatch(t *testing.T) {
	testlog.Start(t)

	host := bootstrap.NewHost(bootstrap.HostOptions{})
	_, err := Bind(host.Bootstrap(), VersionRanges{
		ABI: bootstrap.Range{Min: 300, Max: 400},
		API: bootstrap.Range{Min: 100, Max: 200},
	})
	require.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, 0, host.Arena().Live())
}

func TestBindOldAPINeverRequestsDelete(t *testing.T) {
	testlog.Start(t)

	host := bootstrap.NewHost(bootstrap.HostOptions{})
	rec := &recorder{}
	core, err := Bind(rec.wrap(host.Bootstrap()), VersionRanges{
		ABI: bootstrap.Range{Min: 100, Max: 150},
		API: bootstrap.Range{Min: 100, Max: 199},
	})
	require.NoError(t, err)
	for _, name := range []string{
		bootstrap.FuncLeafDelete, bootstrap.FuncPlantFree,
		bootstrap.FuncRealloc, bootstrap.FuncCalloc, bootstrap.FuncMemmove,
	} {
		assert.NotContains(t, rec.names, name)
	}
	assert.Contains(t, rec.names, bootstrap.FuncLeafGet)
	assert.Equal(t, weed.LeafABIVersion, rec.names[0])
	assert.False(t, core.LeafDelete.Present())

	p, err := core.New(weed.PlantGUI)
	require.NoError(t, err)
	assert.ErrorIs(t, core.FreePlant(p), ErrAbsent)
	assert.ErrorIs(t, core.Delete(p, "label"), ErrAbsent)
}

func TestBindNewAPIRequestsDelete(t *testing.T) {
	testlog.Start(t)

	host := bootstrap.NewHost(bootstrap.HostOptions{})
	rec := &recorder{}
	_, err := Bind(rec.wrap(host.Bootstrap()), DefaultRanges)
	require.NoError(t, err)
	assert.Contains(t, rec.names, bootstrap.FuncLeafDelete)
	assert.Contains(t, rec.names, bootstrap.FuncPlantFree)
	assert.Contains(t, rec.names, bootstrap.FuncMemmove)
}

func TestBindFailsClosedOnMissingCapability(t *testing.T) {
	testlog.Start(t)

	for _, omit := range []string{bootstrap.FuncLeafDelete, bootstrap.FuncRealloc, bootstrap.FuncMemcpy} {
		host := bootstrap.NewHost(bootstrap.HostOptions{Omit: []string{omit}})
		core, err := Bind(host.Bootstrap(), DefaultRanges)
		if !errors.Is(err, weed.ErrInitialization) {
			t.Fatalf("omit %s: expected ErrInitialization, got %v", omit, err)
		}
		assert.Nil(t, core)
	}

	// Below the API break the omitted delete is never missed.
	host := bootstrap.NewHost(bootstrap.HostOptions{Omit: []string{bootstrap.FuncLeafDelete}})
	_, err := Bind(host.Bootstrap(), VersionRanges{ABI: DefaultRanges.ABI, API: bootstrap.Range{Min: 100, Max: 150}})
	assert.NoError(t, err)
}

func TestBindFailsClosedOnIllTypedCapability(t *testing.T) {
	testlog.Start(t)

	host := bootstrap.NewHost(bootstrap.HostOptions{})
	boot := func(out *bootstrap.DefaultGetter, abiMin, abiMax, apiMin, apiMax int32) weed.Handle {
		info := host.Negotiate(out, abiMin, abiMax, apiMin, apiMax)
		require.NoError(t, host.Arena().Set(info, bootstrap.FuncPlantNew, weed.Funcs{weed.Func("not a function")}))
		return info
	}
	_, err := Bind(boot, DefaultRanges)
	require.ErrorIs(t, err, weed.ErrInitialization)
	assert.ErrorIs(t, err, weed.ErrWrongSeedType)
}

func TestPluginInfoReusesHostPlant(t *testing.T) {
	testlog.Start(t)

	core, host := bind(t, bootstrap.HostOptions{}, DefaultRanges)
	pinfo, err := core.PluginInfo()
	require.NoError(t, err)

	var attached weed.Handle
	require.NoError(t, host.Arena().Get(host.Info(), weed.LeafPluginInfo, 0, &attached))
	assert.Equal(t, attached, pinfo)

	back, err := core.GetPlant(pinfo, weed.LeafHostInfo)
	require.NoError(t, err)
	assert.Equal(t, core.HostInfo(), back)

	again, err := core.PluginInfo()
	require.NoError(t, err)
	assert.Equal(t, pinfo, again)
}

func TestPluginInfoCreatedWhenHostPlantWrongType(t *testing.T) {
	testlog.Start(t)

	host := bootstrap.NewHost(bootstrap.HostOptions{})
	boot := func(out *bootstrap.DefaultGetter, abiMin, abiMax, apiMin, apiMax int32) weed.Handle {
		info := host.Negotiate(out, abiMin, abiMax, apiMin, apiMax)
		bogus, err := host.Arena().New(weed.PlantGUI)
		require.NoError(t, err)
		require.NoError(t, host.Arena().Set(info, weed.LeafPluginInfo, weed.PlantRefs{bogus}))
		return info
	}
	core, err := Bind(boot, DefaultRanges)
	require.NoError(t, err)
	pinfo, err := core.PluginInfo()
	require.NoError(t, err)
	typ, err := core.Type(pinfo)
	require.NoError(t, err)
	assert.Equal(t, weed.PlantPluginInfo, typ)
}

func TestTypedAccessors(t *testing.T) {
	testlog.Start(t)

	core, _ := bind(t, bootstrap.HostOptions{}, DefaultRanges)
	p, err := core.New(weed.PlantParameterTemplate)
	require.NoError(t, err)

	require.NoError(t, core.SetInt32(p, "i", 7))
	require.NoError(t, core.SetDouble(p, "d", 0.5))
	require.NoError(t, core.SetBool(p, "b", true))
	require.NoError(t, core.SetString(p, "s", "weed"))
	require.NoError(t, core.SetInt64(p, "l", 1<<40))
	require.NoError(t, core.SetStrings(p, "choices", []string{"a", "b", "c"}))
	require.NoError(t, core.SetStrings(p, "empty", nil))

	i, err := core.GetInt32(p, "i")
	require.NoError(t, err)
	assert.Equal(t, int32(7), i)
	d, _ := core.GetDouble(p, "d")
	assert.Equal(t, 0.5, d)
	b, _ := core.GetBool(p, "b")
	assert.True(t, b)
	s, _ := core.GetString(p, "s")
	assert.Equal(t, "weed", s)
	l, _ := core.GetInt64(p, "l")
	assert.Equal(t, int64(1<<40), l)

	choices, err := core.GetStrings(p, "choices")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, choices)
	assert.Equal(t, 4, core.ElementSize(p, "s", 0))

	empty, err := core.GetStrings(p, "empty")
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.True(t, core.Has(p, "empty"))
	assert.False(t, core.Has(p, "nope"))

	_, err = core.GetInt32s(p, "choices")
	assert.ErrorIs(t, err, weed.ErrWrongSeedType)
	_, err = core.GetDoubles(p, "nope")
	assert.ErrorIs(t, err, weed.ErrNoSuchLeaf)
	_, err = core.GetInt32(p, "s")
	assert.ErrorIs(t, err, weed.ErrWrongSeedType)

	require.NoError(t, core.Delete(p, "s"))
	assert.False(t, slices.Contains(core.ListLeaves(p), "s"))
	require.NoError(t, core.FreePlant(p))
	assert.Nil(t, core.ListLeaves(p))
}

func TestAllocThroughHost(t *testing.T) {
	testlog.Start(t)

	core, host := bind(t, bootstrap.HostOptions{}, DefaultRanges)
	before := host.Arena().Allocator().InUse()
	blk, err := core.Alloc(64)
	require.NoError(t, err)
	assert.Equal(t, before+64, host.Arena().Allocator().InUse())
	core.Memset(blk, 1, 64)
	realloc, _ := core.Realloc.Get()
	blk = realloc(blk, 128)
	assert.Equal(t, byte(1), blk.Bytes[63])
	core.Release(blk)
	assert.Equal(t, before, host.Arena().Allocator().InUse())
}

func TestCoresAreIndependent(t *testing.T) {
	testlog.Start(t)

	a, hostA := bind(t, bootstrap.HostOptions{Name: "a"}, DefaultRanges)
	b, hostB := bind(t, bootstrap.HostOptions{Name: "b"}, DefaultRanges)
	pa, _ := a.New(weed.PlantGUI)
	pb, _ := b.New(weed.PlantGUI)
	require.NoError(t, a.SetString(pa, "label", "A"))
	require.NoError(t, b.SetString(pb, "label", "B"))

	la, _ := a.GetString(pa, "label")
	lb, _ := b.GetString(pb, "label")
	assert.Equal(t, "A", la)
	assert.Equal(t, "B", lb)
	assert.NotSame(t, hostA.Arena(), hostB.Arena())
}
