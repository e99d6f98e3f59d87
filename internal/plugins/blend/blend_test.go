package blend

import (
	"testing"

	"github.com/danmuck/weedcore/internal/bootstrap"
	"github.com/danmuck/weedcore/internal/testutil/testlog"
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/danmuck/weedcore/internal/weed/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*weed.Arena, []weed.Handle) {
	t.Helper()
	host := bootstrap.NewHost(bootstrap.HostOptions{})
	info := Setup(host.Bootstrap())
	require.False(t, info.IsZero())
	a := host.Arena()
	require.NoError(t, schema.ValidateType(a, info, weed.PlantPluginInfo))
	v, err := a.Value(info, weed.LeafFilters)
	require.NoError(t, err)
	return a, []weed.Handle(v.(weed.PlantRefs))
}

func TestSetupPublishesFourFilters(t *testing.T) {
	testlog.Start(t)

	a, filters := setup(t)
	require.Len(t, filters, 4)

	seen := map[weed.Handle]string{}
	for i, f := range filters {
		require.NoError(t, schema.Validate(a, f))
		var name string
		require.NoError(t, a.Get(f, weed.LeafName, 0, &name))
		assert.Equal(t, filterNames[i], name)

		v, err := a.Value(f, weed.LeafInChanTmpls)
		require.NoError(t, err)
		chans := v.(weed.PlantRefs)
		require.Len(t, chans, 2)
		for _, ch := range chans {
			owner, dup := seen[ch]
			assert.False(t, dup, "%s shares a channel template with %s", name, owner)
			seen[ch] = name
			require.NoError(t, schema.Validate(a, ch))
		}
		assert.True(t, a.Has(f, weed.LeafProcessFunc))
		assert.False(t, a.Has(f, weed.LeafInitFunc))
	}

	var p0, p1, p2 weed.Handle
	require.NoError(t, a.Get(filters[1], weed.LeafInParamTmpls, 0, &p1))
	require.NoError(t, a.Get(filters[2], weed.LeafInParamTmpls, 0, &p2))
	require.NoError(t, a.Get(filters[0], weed.LeafInParamTmpls, 0, &p0))
	assert.NotEqual(t, p1, p2, "later overlays get their own threshold")
	var name string
	require.NoError(t, a.Get(p2, weed.LeafName, 0, &name))
	assert.Equal(t, "threshold", name)
	var tr bool
	require.NoError(t, a.Get(p0, weed.LeafIsTransition, 0, &tr))
	assert.True(t, tr)
}

var filterNames = []string{"chroma blend", "luma overlay", "luma underlay", "negative luma overlay"}

// instance wires a 2x1 frame pair through a hand built instance.
func instance(t *testing.T, a *weed.Arena, value int32, src1, src2, dst []byte) weed.Handle {
	t.Helper()
	inst, err := a.New(weed.PlantFilterInstance)
	require.NoError(t, err)
	var chans []weed.Handle
	for _, px := range [][]byte{src1, src2, dst} {
		ch, err := a.New(weed.PlantChannel)
		require.NoError(t, err)
		require.NoError(t, a.Set(ch, weed.LeafWidth, weed.Int32s{2}))
		require.NoError(t, a.Set(ch, weed.LeafHeight, weed.Int32s{1}))
		require.NoError(t, a.Set(ch, weed.LeafRowstrides, weed.Int32s{6}))
		require.NoError(t, a.Set(ch, weed.LeafCurrentPal, weed.Int32s{weed.PaletteRGB24}))
		require.NoError(t, a.Set(ch, weed.LeafPixelData, weed.Pointers{px}))
		chans = append(chans, ch)
	}
	require.NoError(t, a.Set(inst, weed.LeafInChannels, weed.PlantRefs(chans[:2])))
	require.NoError(t, a.Set(inst, weed.LeafOutChannels, weed.PlantRefs(chans[2:])))
	param, err := a.New(weed.PlantParameter)
	require.NoError(t, err)
	require.NoError(t, a.Set(param, weed.LeafValue, weed.Int32s{value}))
	require.NoError(t, a.Set(inst, weed.LeafInParameters, weed.PlantRefs{param}))
	return inst
}

func processOf(t *testing.T, a *weed.Arena, f weed.Handle) weed.ProcessFunc {
	t.Helper()
	var fn weed.Func
	require.NoError(t, a.Get(f, weed.LeafProcessFunc, 0, &fn))
	process, ok := fn.(weed.ProcessFunc)
	require.True(t, ok)
	return process
}

func TestChromaBlend(t *testing.T) {
	testlog.Start(t)

	a, filters := setup(t)
	src1 := []byte{0, 0, 0, 255, 255, 255}
	src2 := []byte{255, 255, 255, 0, 0, 0}
	dst := make([]byte, 6)
	inst := instance(t, a, 128, src1, src2, dst)

	require.Equal(t, weed.StatusSuccess, processOf(t, a, filters[0])(inst, 0))
	// 255*128>>8 and 255*127>>8
	assert.Equal(t, []byte{127, 127, 127, 126, 126, 126}, dst)
}

func TestLumaOverlay(t *testing.T) {
	testlog.Start(t)

	a, filters := setup(t)
	src1 := []byte{0, 0, 0, 255, 255, 255}
	src2 := []byte{9, 9, 9, 7, 7, 7}
	dst := make([]byte, 6)
	inst := instance(t, a, 64, src1, src2, dst)

	require.Equal(t, weed.StatusSuccess, processOf(t, a, filters[1])(inst, 0))
	// Dark pixels of the first input are keyed out.
	assert.Equal(t, []byte{9, 9, 9, 255, 255, 255}, dst)
}

func TestLumaUnderlayInPlace(t *testing.T) {
	testlog.Start(t)

	a, filters := setup(t)
	src1 := []byte{1, 2, 3, 4, 5, 6}
	src2 := []byte{255, 255, 255, 0, 0, 0}
	inst := instance(t, a, 64, src1, src2, src1)

	require.Equal(t, weed.StatusSuccess, processOf(t, a, filters[2])(inst, 0))
	assert.Equal(t, []byte{255, 255, 255, 4, 5, 6}, src1)
}

func TestProcessRejectsBadFrames(t *testing.T) {
	testlog.Start(t)

	a, filters := setup(t)
	inst := instance(t, a, 64, make([]byte, 6), make([]byte, 3), make([]byte, 6))
	assert.Equal(t, weed.StatusReinitNeeded, processOf(t, a, filters[0])(inst, 0))

	empty, _ := a.New(weed.PlantFilterInstance)
	assert.Equal(t, weed.StatusNoSuchLeaf, processOf(t, a, filters[0])(empty, 0))
}

func TestSetupFailsWithoutMatchingHost(t *testing.T) {
	testlog.Start(t)

	host := bootstrap.NewHost(bootstrap.HostOptions{})
	future := func(out *bootstrap.DefaultGetter, _, _, apiMin, apiMax int32) weed.Handle {
		return host.Negotiate(out, 300, 400, apiMin, apiMax)
	}
	assert.True(t, Setup(future).IsZero())
	assert.Equal(t, 0, host.Arena().Live())
}
