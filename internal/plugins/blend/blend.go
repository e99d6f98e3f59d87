// Package blend provides two-input RGB blends: a chroma blend and three
// luma keyed overlays. The chroma blend owns the channel templates it
// builds and every overlay gets its own clone of them.
package blend

import (
	"fmt"

	"github.com/danmuck/weedcore/internal/binding"
	"github.com/danmuck/weedcore/internal/bootstrap"
	"github.com/danmuck/weedcore/internal/clone"
	"github.com/danmuck/weedcore/internal/logging"
	"github.com/danmuck/weedcore/internal/plugins"
	"github.com/danmuck/weedcore/internal/templates"
	"github.com/danmuck/weedcore/internal/weed"
)

const (
	Name           = "blend"
	PackageVersion = 1
)

// Plugin returns the registry entry for blend.
func Plugin() plugins.Plugin {
	return plugins.Plugin{
		Name:        Name,
		Description: "chroma blend and luma overlays for two RGB inputs",
		Setup:       Setup,
	}
}

type mode int

const (
	chroma mode = iota
	lumaOverlay
	lumaUnderlay
	negLumaOverlay
)

var filters = []struct {
	name  string
	mode  mode
	param string
}{
	{"chroma blend", chroma, "amount"},
	{"luma overlay", lumaOverlay, "threshold"},
	{"luma underlay", lumaUnderlay, "threshold"},
	{"negative luma overlay", negLumaOverlay, "threshold"},
}

// Setup is the plugin entry point.
func Setup(boot bootstrap.Bootstrap) weed.Handle {
	logger := logging.Component("plugin.blend")
	core, err := binding.Bind(boot, binding.DefaultRanges)
	if err != nil {
		logger.Warn().Err(err).Msg("bind failed")
		return weed.NoPlant
	}
	info, err := build(templates.New(core))
	if err != nil {
		logger.Warn().Err(err).Msg("setup failed")
		return weed.NoPlant
	}
	return info
}

func build(b *templates.Builder) (weed.Handle, error) {
	c := b.Core()
	info, err := c.PluginInfo()
	if err != nil {
		return weed.NoPlant, err
	}
	palettes := []int32{weed.PaletteBGR24, weed.PaletteRGB24, weed.PaletteEnd}

	var in, out []weed.Handle
	for _, name := range []string{"in channel 0", "in channel 1"} {
		ch, err := b.ChannelTemplate(name, 0)
		if err != nil {
			return weed.NoPlant, err
		}
		in = append(in, ch)
	}
	ch, err := b.ChannelTemplate("out channel 0", weed.ChannelCanDoInplace)
	if err != nil {
		return weed.NoPlant, err
	}
	out = append(out, ch)

	amount, err := b.Integer("amount", "Blend _amount", 128, 0, 255)
	if err != nil {
		return weed.NoPlant, err
	}
	threshold, err := b.Integer("threshold", "luma _threshold", 64, 0, 255)
	if err != nil {
		return weed.NoPlant, err
	}
	for _, p := range []weed.Handle{amount, threshold} {
		if err := b.DeclareTransition(p); err != nil {
			return weed.NoPlant, err
		}
	}

	for i, f := range filters {
		inChans, outChans, params := in, out, []weed.Handle{amount}
		if f.mode != chroma {
			params = []weed.Handle{threshold}
		}
		if i > 0 {
			// Each filter owns its channel templates.
			if inChans, err = clone.Plants(c, in); err != nil {
				return weed.NoPlant, err
			}
			if outChans, err = clone.Plants(c, out); err != nil {
				return weed.NoPlant, err
			}
		}
		if i > 1 {
			if params, err = clone.Plants(c, params); err != nil {
				return weed.NoPlant, err
			}
		}
		bl := &blender{b: b, mode: f.mode}
		fc, err := b.FilterClass(templates.Filter{
			Name:        f.name,
			Author:      "salsaman",
			Version:     1,
			Flags:       weed.FilterHintStateless,
			Palettes:    palettes,
			Process:     bl.process,
			InChannels:  inChans,
			OutChannels: outChans,
			InParams:    params,
		})
		if err != nil {
			return weed.NoPlant, err
		}
		if err := b.AddFilterClass(info, fc); err != nil {
			return weed.NoPlant, err
		}
	}
	if err := b.SetPackageVersion(info, PackageVersion); err != nil {
		return weed.NoPlant, err
	}
	return info, nil
}

type blender struct {
	b    *templates.Builder
	mode mode
}

func (bl *blender) process(inst weed.Handle, _ int64) weed.Status {
	src1, src2, dst, err := bl.frames(inst)
	if err != nil {
		return weed.StatusOf(err)
	}
	params, err := bl.b.InParams(inst)
	if err != nil || len(params) == 0 {
		return weed.StatusNoSuchElement
	}
	v, err := bl.b.ParamInt32(params[0])
	if err != nil {
		return weed.StatusOf(err)
	}
	blend(bl.mode, byte(v), src1, src2, dst)
	return weed.StatusSuccess
}

func (bl *blender) frames(inst weed.Handle) (src1, src2, dst templates.Frame, err error) {
	in, err := bl.b.InChannels(inst)
	if err != nil {
		return
	}
	out, err := bl.b.OutChannels(inst)
	if err != nil {
		return
	}
	if len(in) < 2 || len(out) < 1 {
		err = fmt.Errorf("blend needs 2 inputs and 1 output: %w", weed.ErrNoSuchElement)
		return
	}
	if src1, err = bl.b.ReadFrame(in[0]); err != nil {
		return
	}
	if src2, err = bl.b.ReadFrame(in[1]); err != nil {
		return
	}
	if dst, err = bl.b.ReadFrame(out[0]); err != nil {
		return
	}
	for _, f := range []templates.Frame{src1, src2, dst} {
		if !fits(f, src1.Width, src1.Height) {
			err = fmt.Errorf("frame %dx%d: %w", f.Width, f.Height, weed.ErrReinitNeeded)
			return
		}
	}
	return
}

// fits reports whether f holds a w by h frame of 3 byte pixels.
func fits(f templates.Frame, w, h int32) bool {
	if f.Width != w || f.Height != h || h <= 0 || w <= 0 {
		return false
	}
	stride := int(f.Rowstride)
	if stride < int(w)*3 {
		return false
	}
	return len(f.Pixels) >= (int(h)-1)*stride+int(w)*3
}
