package bootstrap

import (
	"testing"

	"github.com/danmuck/weedcore/internal/testutil/testlog"
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/danmuck/weedcore/internal/weed/alloc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func negotiated(t *testing.T, h *Host, info weed.Handle) (abi, api int32) {
	t.Helper()
	a := h.Arena()
	require.NoError(t, a.Get(info, weed.LeafABIVersion, 0, &abi))
	require.NoError(t, a.Get(info, weed.LeafFilterAPIVer, 0, &api))
	return abi, api
}

func TestNegotiatePicksHighestCommonVersion(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		name                           string
		host                           HostOptions
		abiMin, abiMax, apiMin, apiMax int32
		wantABI, wantAPI               int32
	}{
		{"full overlap", HostOptions{}, 100, 201, 100, 200, 201, 200},
		{"plugin older", HostOptions{}, 100, 150, 100, 131, 150, 131},
		{"plugin newer than host", HostOptions{}, 150, 900, 180, 900, ABIVersion, FilterAPIVersion},
		{"reversed ranges", HostOptions{}, 199, 100, 131, 100, 199, 131},
		{"host capped", HostOptions{ABI: Range{100, 160}, API: Range{100, 150}}, 120, 201, 100, 200, 160, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHost(tc.host)
			var get DefaultGetter
			info := h.Negotiate(&get, tc.abiMin, tc.abiMax, tc.apiMin, tc.apiMax)
			require.False(t, info.IsZero())
			require.NotNil(t, get)

			abi, api := negotiated(t, h, info)
			assert.Equal(t, tc.wantABI, abi)
			assert.Equal(t, tc.wantAPI, api)
			gotABI, gotAPI := h.Versions()
			assert.Equal(t, abi, gotABI)
			assert.Equal(t, api, gotAPI)

			var viaGetter int32
			assert.Equal(t, weed.StatusSuccess, get(info, weed.LeafABIVersion, 0, &viaGetter))
			assert.Equal(t, abi, viaGetter)
		})
	}
}

func TestNegotiateNoMatchAllocatesNothing(t *testing.T) {
	testlog.Start(t)

	pool := alloc.NewPool(0)
	h := NewHost(HostOptions{Allocator: pool})
	var get DefaultGetter
	for _, r := range [][4]int32{
		{300, 400, 100, 200},
		{100, 200, 201, 300},
		{50, 99, 50, 99},
	} {
		info := h.Negotiate(&get, r[0], r[1], r[2], r[3])
		assert.True(t, info.IsZero(), "%v", r)
	}
	assert.Nil(t, get)
	assert.Equal(t, 0, h.Arena().Live())
	assert.Equal(t, 0, pool.InUse())
	assert.True(t, h.Info().IsZero())
}

func TestCapabilitiesGatedByVersion(t *testing.T) {
	testlog.Start(t)

	abiGated := []string{FuncRealloc, FuncCalloc, FuncMemmove}
	apiGated := []string{FuncPlantFree, FuncLeafDelete}
	always := []string{
		FuncLeafGet, FuncLeafSet, FuncPlantNew, FuncPlantListLeaves, FuncLeafNumElements,
		FuncLeafElementSize, FuncLeafSeedType, FuncLeafGetFlags, FuncMalloc, FuncFree,
		FuncMemset, FuncMemcpy,
	}

	cases := []struct {
		abiMax, apiMax int32
		wantABI        bool
		wantAPI        bool
	}{
		{199, 199, false, false},
		{200, 199, true, false},
		{199, 200, false, true},
		{201, 200, true, true},
	}
	for _, tc := range cases {
		h := NewHost(HostOptions{})
		info := h.Negotiate(nil, 100, tc.abiMax, 100, tc.apiMax)
		require.False(t, info.IsZero())
		a := h.Arena()
		for _, key := range always {
			assert.True(t, a.Has(info, key), key)
		}
		for _, key := range abiGated {
			assert.Equal(t, tc.wantABI, a.Has(info, key), "abi=%d %s", tc.abiMax, key)
		}
		for _, key := range apiGated {
			assert.Equal(t, tc.wantAPI, a.Has(info, key), "api=%d %s", tc.apiMax, key)
		}
	}
}

func TestOmitLeavesCapabilityUnpublished(t *testing.T) {
	testlog.Start(t)

	h := NewHost(HostOptions{Omit: []string{FuncLeafDelete, FuncMemcpy}})
	info := h.Negotiate(nil, 100, 201, 100, 200)
	require.False(t, info.IsZero())
	assert.False(t, h.Arena().Has(info, FuncLeafDelete))
	assert.False(t, h.Arena().Has(info, FuncMemcpy))
	assert.True(t, h.Arena().Has(info, FuncPlantFree))
}

func TestInformationalLeavesAndPluginInfo(t *testing.T) {
	testlog.Start(t)

	h := NewHost(HostOptions{Name: "weedhost", Version: "1.2.0", Flags: 3, Verbosity: weed.VerbosityDebug})
	info := h.Negotiate(nil, 100, 200, 100, 200)
	a := h.Arena()

	var name string
	require.NoError(t, a.Get(info, weed.LeafHostName, 0, &name))
	assert.Equal(t, "weedhost", name)
	var verbosity int32
	require.NoError(t, a.Get(info, weed.LeafVerbosity, 0, &verbosity))
	assert.Equal(t, weed.VerbosityDebug, verbosity)

	var pinfo weed.Handle
	require.NoError(t, a.Get(info, weed.LeafPluginInfo, 0, &pinfo))
	pt, err := a.PlantType(pinfo)
	require.NoError(t, err)
	assert.Equal(t, weed.PlantPluginInfo, pt)
	var back weed.Handle
	require.NoError(t, a.Get(pinfo, weed.LeafHostInfo, 0, &back))
	assert.Equal(t, info, back)
}

func TestPublishedSetRespectsPluginReadonly(t *testing.T) {
	testlog.Start(t)

	h := NewHost(HostOptions{})
	var get DefaultGetter
	info := h.Negotiate(&get, 100, 201, 100, 200)

	var fn weed.Func
	require.Equal(t, weed.StatusSuccess, get(info, FuncLeafSet, 0, &fn))
	set := fn.(LeafSetFunc)
	assert.Equal(t, weed.StatusImmutable, set(info, FuncLeafGet, weed.SeedInt32, 1, []int32{0}))

	require.Equal(t, weed.StatusSuccess, get(info, FuncPlantNew, 0, &fn))
	p := fn.(PlantNewFunc)(weed.PlantGUI)
	assert.Equal(t, weed.StatusSuccess, set(p, "label", weed.SeedString, 1, []string{"mix"}))
	assert.Equal(t, weed.StatusWrongSeedType, set(p, "label", weed.SeedDouble, 1, []string{"mix"}))

	require.Equal(t, weed.StatusSuccess, get(info, FuncLeafDelete, 0, &fn))
	assert.Equal(t, weed.StatusUndeletable, fn.(LeafDeleteFunc)(p, weed.LeafType))
	assert.Equal(t, weed.StatusNoSuchLeaf, get(p, "missing", 0, nil))
}

func TestNegotiationFailureFreesEverything(t *testing.T) {
	testlog.Start(t)

	for _, limit := range []int{40, 200, 600, 1000} {
		pool := alloc.NewPool(limit)
		h := NewHost(HostOptions{Allocator: pool, Name: "tiny"})
		var get DefaultGetter
		info := h.Negotiate(&get, 100, 201, 100, 200)
		if !info.IsZero() {
			t.Fatalf("limit=%d: expected negotiation to fail", limit)
		}
		assert.Nil(t, get)
		assert.Equal(t, 0, h.Arena().Live(), "limit=%d", limit)
		assert.Equal(t, 0, pool.InUse(), "limit=%d", limit)
	}
}

func TestRenegotiationReplacesCapabilityPlants(t *testing.T) {
	testlog.Start(t)

	pool := alloc.NewPool(0)
	h := NewHost(HostOptions{Allocator: pool})
	a := h.Arena()
	first := h.Negotiate(nil, 100, 201, 100, 200)
	require.False(t, first.IsZero())
	var firstInfo weed.Handle
	require.NoError(t, a.Get(first, weed.LeafPluginInfo, 0, &firstInfo))
	live, used := a.Live(), pool.InUse()

	second := h.Negotiate(nil, 100, 150, 100, 131)
	require.False(t, second.IsZero())
	assert.Equal(t, second, h.Info())
	assert.False(t, a.Valid(first))
	assert.False(t, a.Valid(firstInfo))
	assert.Equal(t, live, a.Live())
	_, api := h.Versions()
	assert.Equal(t, int32(131), api)

	// A failed repeat keeps the last good pair.
	assert.True(t, h.Negotiate(nil, 300, 400, 100, 200).IsZero())
	assert.Equal(t, second, h.Info())
	assert.True(t, a.Valid(second))
	assert.Equal(t, live, a.Live())
	assert.LessOrEqual(t, pool.InUse(), used)
}

func TestHostsAreIndependent(t *testing.T) {
	testlog.Start(t)

	a := NewHost(HostOptions{Name: "a"})
	b := NewHost(HostOptions{Name: "b", ABI: Range{100, 150}})
	ia := a.Negotiate(nil, 100, 201, 100, 200)
	ib := b.Negotiate(nil, 100, 201, 100, 200)

	abiA, _ := a.Versions()
	abiB, _ := b.Versions()
	assert.Equal(t, int32(201), abiA)
	assert.Equal(t, int32(150), abiB)
	assert.NotSame(t, a.Arena(), b.Arena())
	assert.True(t, a.Arena().Valid(ia))
	assert.True(t, b.Arena().Valid(ib))
}

func TestRangeHelpers(t *testing.T) {
	r, ok := Range{200, 100}.Intersect(Range{150, 300})
	require.True(t, ok)
	assert.Equal(t, Range{150, 200}, r)
	_, ok = Range{1, 2}.Intersect(Range{3, 4})
	assert.False(t, ok)
	assert.True(t, Range{5, 1}.Contains(3))
}
