package host

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/danmuck/weedcore/internal/binding"
	"github.com/danmuck/weedcore/internal/bootstrap"
	"github.com/danmuck/weedcore/internal/config"
	"github.com/danmuck/weedcore/internal/plugins"
	"github.com/danmuck/weedcore/internal/plugins/builtin"
	"github.com/danmuck/weedcore/internal/templates"
	"github.com/danmuck/weedcore/internal/testutil/testlog"
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/danmuck/weedcore/internal/weed/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func loaded(t *testing.T, cfg config.HostConfig, extra ...plugins.Plugin) *Runtime {
	t.Helper()
	reg := builtin.Registry()
	for _, p := range extra {
		require.NoError(t, reg.Register(p))
	}
	rt := New(cfg, reg)
	rt.LoadAll()
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

// partial publishes one usable filter and one without an author.
func partial(boot bootstrap.Bootstrap) weed.Handle {
	core, err := binding.Bind(boot, binding.DefaultRanges)
	if err != nil {
		return weed.NoPlant
	}
	b := templates.New(core)
	info, err := core.PluginInfo()
	if err != nil {
		return weed.NoPlant
	}
	good, err := b.FilterClass(templates.Filter{
		Name:    "good",
		Author:  "test",
		Version: 1,
		Process: func(weed.Handle, int64) weed.Status { return weed.StatusSuccess },
	})
	if err != nil || b.AddFilterClass(info, good) != nil {
		return weed.NoPlant
	}
	bad, err := core.New(weed.PlantFilterClass)
	if err != nil || core.SetString(bad, weed.LeafName, "bad") != nil {
		return weed.NoPlant
	}
	if b.AddFilterClass(info, bad) != nil {
		return weed.NoPlant
	}
	return info
}

// twins publishes two filter classes that share a name.
func twins(boot bootstrap.Bootstrap) weed.Handle {
	core, err := binding.Bind(boot, binding.DefaultRanges)
	if err != nil {
		return weed.NoPlant
	}
	b := templates.New(core)
	info, err := core.PluginInfo()
	if err != nil {
		return weed.NoPlant
	}
	for v := int32(1); v <= 2; v++ {
		f, err := b.FilterClass(templates.Filter{
			Name:    "fx",
			Author:  "test",
			Version: v,
			Process: func(weed.Handle, int64) weed.Status { return weed.StatusSuccess },
		})
		if err != nil || b.AddFilterClass(info, f) != nil {
			return weed.NoPlant
		}
	}
	return info
}

func TestLoadAllBuiltins(t *testing.T) {
	testlog.Start(t)

	rt := loaded(t, config.DefaultHostConfig())
	ps := rt.Plugins()
	require.Len(t, ps, 2)
	for _, p := range ps {
		assert.Equal(t, StateLoaded, p.State, p.Name)
		assert.Equal(t, int32(200), p.API, p.Name)
		assert.Positive(t, p.BytesInUse, p.Name)
		assert.Empty(t, p.Skipped, p.Name)
	}

	blend, err := rt.Filter("blend.chroma-blend")
	require.NoError(t, err)
	assert.Equal(t, "chroma blend", blend.Name)
	assert.Equal(t, 2, blend.InChannels)
	assert.Equal(t, 1, blend.OutChannels)
	assert.Equal(t, []string{"amount"}, blend.InParams)
	assert.Equal(t, CategoryTransition, blend.Category)
	assert.Equal(t, SubAudioVideo, blend.Subcategory)

	vol, err := rt.Filter("audio volume and pan")
	require.NoError(t, err)
	assert.Equal(t, "audiovol.audio-volume-and-pan", vol.Key)
	assert.Equal(t, CategoryConverter, vol.Category)
	assert.Equal(t, SubVolumeController, vol.Subcategory)
	assert.Equal(t, []string{"volume", "pan", "swap"}, vol.InParams)

	assert.Len(t, rt.Filters(), 5)
}

func TestFailingPluginsDoNotStopOthers(t *testing.T) {
	testlog.Start(t)

	rt := loaded(t, config.DefaultHostConfig(),
		plugins.Plugin{Name: "nomatch", Setup: func(bootstrap.Bootstrap) weed.Handle { return weed.NoPlant }},
		plugins.Plugin{Name: "panics", Setup: func(bootstrap.Bootstrap) weed.Handle { panic("boom") }},
	)

	p, err := rt.Plugin("nomatch")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, p.State)
	assert.Contains(t, p.Error, "no plugin info")

	p, err = rt.Plugin("panics")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, p.State)
	assert.Contains(t, p.Error, "boom")

	p, err = rt.Plugin("blend")
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, p.State)
	assert.Len(t, rt.Filters(), 5)

	_, err = rt.Load("missing")
	assert.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestInvalidFilterIsSkipped(t *testing.T) {
	testlog.Start(t)

	rt := loaded(t, config.DefaultHostConfig(), plugins.Plugin{Name: "partial", Setup: partial})
	p, err := rt.Plugin("partial")
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, p.State)
	assert.Equal(t, []string{"partial.good"}, p.Filters)
	require.Len(t, p.Skipped, 1)
	assert.Contains(t, p.Skipped[0], "author")

	_, err = rt.Filter("bad")
	assert.ErrorIs(t, err, ErrUnknownFilter)

	inst, err := rt.Instantiate("good")
	require.NoError(t, err)
	require.NoError(t, rt.Process(inst.ID, 0))
}

func TestDuplicateFilterInOnePluginIsSkipped(t *testing.T) {
	testlog.Start(t)

	rt := loaded(t, config.DefaultHostConfig(), plugins.Plugin{Name: "dup", Setup: twins})
	p, err := rt.Plugin("dup")
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, p.State)
	assert.Equal(t, []string{"dup.fx"}, p.Filters)
	require.Len(t, p.Skipped, 1)
	assert.Contains(t, p.Skipped[0], "duplicate filter")
	assert.Len(t, rt.Filters(), 6)

	f, err := rt.Filter("dup.fx")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.Version)
}

func TestDisabledPlugin(t *testing.T) {
	testlog.Start(t)

	off := false
	cfg := config.DefaultHostConfig()
	cfg.Plugins = []config.PluginConfig{{Name: "audiovol", Enabled: &off}}
	rt := loaded(t, cfg)

	p, err := rt.Plugin("audiovol")
	require.NoError(t, err)
	assert.Equal(t, StateDisabled, p.State)
	assert.Len(t, rt.Filters(), 4)

	_, err = rt.DescribePlugin("audiovol")
	assert.ErrorIs(t, err, weed.ErrNotReady)
}

func TestPluginMemoryLimit(t *testing.T) {
	testlog.Start(t)

	cfg := config.DefaultHostConfig()
	cfg.Plugins = []config.PluginConfig{{Name: "blend", MaxBytes: 64}}
	rt := loaded(t, cfg)

	p, err := rt.Plugin("blend")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, p.State)

	p, err = rt.Plugin("audiovol")
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, p.State)
}

func TestInstanceLimit(t *testing.T) {
	testlog.Start(t)

	cfg := config.DefaultHostConfig()
	cfg.Instances.MaxPerFilter = 1
	rt := loaded(t, cfg)

	first, err := rt.Instantiate("luma overlay")
	require.NoError(t, err)
	_, err = rt.Instantiate("blend.luma-overlay")
	require.ErrorIs(t, err, weed.ErrTooManyInstances)
	assert.Equal(t, weed.StatusTooManyInstances, weed.StatusOf(err))

	// Other filters have their own count.
	_, err = rt.Instantiate("chroma blend")
	require.NoError(t, err)

	require.NoError(t, rt.Deinit(first.ID))
	_, err = rt.Instantiate("luma overlay")
	require.NoError(t, err)
	assert.Len(t, rt.Instances(), 2)

	assert.ErrorIs(t, rt.Deinit(first.ID), ErrUnknownInstance)
}

func TestDeinitReleasesInstancePlants(t *testing.T) {
	testlog.Start(t)

	rt := loaded(t, config.DefaultHostConfig())
	before, err := rt.Plugin("blend")
	require.NoError(t, err)

	inst, err := rt.Instantiate("chroma blend")
	require.NoError(t, err)
	f, err := rt.Filter("chroma blend")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Active)

	a := f.p.host.Arena()
	var id string
	require.NoError(t, a.Get(inst.Handle(), weed.LeafInstanceID, 0, &id))
	assert.Equal(t, inst.ID, id)

	require.NoError(t, rt.Deinit(inst.ID))
	assert.Equal(t, before.BytesInUse, a.Allocator().InUse())
	assert.False(t, a.Valid(inst.Handle()))
}

func TestProcessChromaBlend(t *testing.T) {
	testlog.Start(t)

	rt := loaded(t, config.DefaultHostConfig())
	inst, err := rt.Instantiate("chroma blend")
	require.NoError(t, err)

	v, err := rt.GetParam(inst.ID, "amount")
	require.NoError(t, err)
	assert.Equal(t, weed.Int32s{128}, v)

	err = rt.Process(inst.ID, 0)
	require.ErrorIs(t, err, weed.ErrReinitNeeded)

	frame := func(px byte) templates.Frame {
		pixels := make([]byte, 6)
		for i := range pixels {
			pixels[i] = px
		}
		return templates.Frame{Width: 2, Height: 1, Palette: weed.PaletteRGB24, Rowstride: 6, Pixels: pixels}
	}
	dst := frame(0)
	require.NoError(t, rt.SetFrame(inst.ID, In, 0, frame(0)))
	require.NoError(t, rt.SetFrame(inst.ID, In, 1, frame(200)))
	require.NoError(t, rt.SetFrame(inst.ID, Out, 0, dst))
	assert.ErrorIs(t, rt.SetFrame(inst.ID, In, 2, frame(0)), weed.ErrNoSuchElement)

	require.NoError(t, rt.Process(inst.ID, weed.TicksPerSecond))
	assert.Equal(t, []byte{100, 100, 100, 100, 100, 100}, dst.Pixels)

	require.NoError(t, rt.SetParam(inst.ID, "amount", weed.Int32s{255}))
	require.NoError(t, rt.Process(inst.ID, 2*weed.TicksPerSecond))
	assert.Equal(t, []byte{199, 199, 199, 199, 199, 199}, dst.Pixels)
}

func TestSetParamChecks(t *testing.T) {
	testlog.Start(t)

	rt := loaded(t, config.DefaultHostConfig())
	inst, err := rt.Instantiate("chroma blend")
	require.NoError(t, err)

	cases := []struct {
		name  string
		param string
		value weed.Value
		want  error
	}{
		{"above max", "amount", weed.Int32s{256}, ErrParamRange},
		{"below min", "amount", weed.Int32s{-1}, ErrParamRange},
		{"wrong seed", "amount", weed.Doubles{1}, weed.ErrWrongSeedType},
		{"nil value", "amount", nil, weed.ErrWrongSeedType},
		{"unknown", "volume", weed.Int32s{1}, ErrUnknownParam},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, rt.SetParam(inst.ID, tc.param, tc.value), tc.want)
		})
	}
	v, err := rt.GetParam(inst.ID, "amount")
	require.NoError(t, err)
	assert.Equal(t, weed.Int32s{128}, v)

	_, err = rt.GetParam("nope", "amount")
	assert.ErrorIs(t, err, ErrUnknownInstance)
}

func TestProcessAudioVolume(t *testing.T) {
	testlog.Start(t)

	rt := loaded(t, config.DefaultHostConfig())
	inst, err := rt.Instantiate("audio volume and pan")
	require.NoError(t, err)

	src := [][]float32{{1, 0.5}, {1, 0.5}}
	dst := [][]float32{{0, 0}, {0, 0}}
	require.NoError(t, rt.SetFrame(inst.ID, In, 0, templates.Frame{AudioRate: 48000, AudioChannels: 2, Audio: src}))
	require.NoError(t, rt.SetFrame(inst.ID, Out, 0, templates.Frame{AudioRate: 48000, AudioChannels: 2, Audio: dst}))
	require.NoError(t, rt.SetParam(inst.ID, "volume", weed.Doubles{0.5}))
	require.NoError(t, rt.Process(inst.ID, 0))
	assert.Equal(t, [][]float32{{0.5, 0.25}, {0.5, 0.25}}, dst)

	require.ErrorIs(t, rt.SetParam(inst.ID, "pan", weed.Doubles{-2}), ErrParamRange)
}

func TestDescribe(t *testing.T) {
	testlog.Start(t)

	rt := loaded(t, config.DefaultHostConfig())
	n, err := rt.Describe("luma underlay")
	require.NoError(t, err)
	assert.Equal(t, "filter_class", n.Type)
	assert.False(t, n.Ref)

	leaves := map[string]Leaf{}
	for _, l := range n.Leaves {
		leaves[l.Key] = l
	}
	assert.Equal(t, []any{"luma underlay"}, leaves[weed.LeafName].Values)
	assert.Equal(t, []any{"weed.ProcessFunc"}, leaves[weed.LeafProcessFunc].Values)
	require.Len(t, leaves[weed.LeafPluginInfo].Plants, 1)
	assert.True(t, leaves[weed.LeafPluginInfo].Plants[0].Ref)
	require.Len(t, leaves[weed.LeafInChanTmpls].Plants, 2)
	assert.False(t, leaves[weed.LeafInChanTmpls].Plants[0].Ref)

	_, err = json.Marshal(n)
	require.NoError(t, err)
	_, err = yaml.Marshal(n)
	require.NoError(t, err)

	root, err := rt.DescribePlugin("blend")
	require.NoError(t, err)
	assert.Equal(t, "plugin_info", root.Type)
	for _, l := range root.Leaves {
		if l.Key != weed.LeafFilters {
			continue
		}
		require.Len(t, l.Plants, 4)
		for _, f := range l.Plants {
			assert.False(t, f.Ref)
		}
	}

	_, err = rt.Describe("nope")
	assert.ErrorIs(t, err, ErrUnknownFilter)
}

func TestExport(t *testing.T) {
	testlog.Start(t)

	rt := loaded(t, config.DefaultHostConfig())
	buf, err := rt.Export("blend.chroma-blend")
	require.NoError(t, err)
	leaves, err := wire.DecodeLeaves(buf)
	require.NoError(t, err)
	require.NotEmpty(t, leaves)
	assert.Equal(t, weed.LeafType, leaves[0].Key)
	var found bool
	for _, l := range leaves {
		if l.Key == weed.LeafName {
			found = true
			assert.Equal(t, [][]byte{[]byte("chroma blend")}, l.Elems)
		}
	}
	assert.True(t, found)
}

func TestFilterKey(t *testing.T) {
	cases := map[string]string{
		"chroma blend":           "blend.chroma-blend",
		"  Luma  Overlay ":       "blend.luma-overlay",
		"negative luma overlay!": "blend.negative-luma-overlay",
	}
	for in, want := range cases {
		if got := filterKey("blend", in); got != want {
			t.Fatalf("filterKey(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestGuard(t *testing.T) {
	err := guard(func() { panic(errors.New("bad")) })
	if !errors.Is(err, ErrPluginPanic) {
		t.Fatalf("expected ErrPluginPanic, got %v", err)
	}
	if err := guard(func() {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
