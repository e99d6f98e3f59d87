// Package audiovol mixes any number of audio inputs into one output with
// a volume and pan per input. The volume parameter is the host's volume
// master.
package audiovol

import (
	"github.com/danmuck/weedcore/internal/binding"
	"github.com/danmuck/weedcore/internal/bootstrap"
	"github.com/danmuck/weedcore/internal/logging"
	"github.com/danmuck/weedcore/internal/plugins"
	"github.com/danmuck/weedcore/internal/templates"
	"github.com/danmuck/weedcore/internal/weed"
)

const (
	Name           = "audiovol"
	FilterName     = "audio volume and pan"
	PackageVersion = 1
)

func Plugin() plugins.Plugin {
	return plugins.Plugin{
		Name:        Name,
		Description: "audio volume and pan mixer",
		Setup:       Setup,
	}
}

// Setup is the plugin entry point. It only binds filter API 200 hosts.
func Setup(boot bootstrap.Bootstrap) weed.Handle {
	logger := logging.Component("plugin.audiovol")
	core, err := binding.Bind(boot, binding.VersionRanges{
		ABI: binding.DefaultRanges.ABI,
		API: bootstrap.Range{Min: 200, Max: 200},
	})
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
	info, err := b.Core().PluginInfo()
	if err != nil {
		return weed.NoPlant, err
	}
	in, err := b.AudioChannelTemplate("in channel 0", 0)
	if err != nil {
		return weed.NoPlant, err
	}
	out, err := b.AudioChannelTemplate("out channel 0", weed.ChannelCanDoInplace)
	if err != nil {
		return weed.NoPlant, err
	}
	// Any number of repeats of the input.
	if err := b.Core().SetInt32(in, weed.LeafMaxRepeats, 0); err != nil {
		return weed.NoPlant, err
	}

	volume, err := b.Float("volume", "_Volume", 1, 0, 1)
	if err != nil {
		return weed.NoPlant, err
	}
	pan, err := b.Float("pan", "_Pan", 0, -1, 1)
	if err != nil {
		return weed.NoPlant, err
	}
	swap, err := b.Switch("swap", "_Swap left and right channels", false)
	if err != nil {
		return weed.NoPlant, err
	}
	perChannel := weed.ParameterVariableSize | weed.ParameterValuePerChannel
	for p, def := range map[weed.Handle]weed.Value{
		volume: weed.Doubles{1},
		pan:    weed.Doubles{0},
		swap:   weed.Booleans{false},
	} {
		if err := b.SetFlags(p, perChannel); err != nil {
			return weed.NoPlant, err
		}
		if err := b.Core().Set(p, weed.LeafNewDefault, def); err != nil {
			return weed.NoPlant, err
		}
	}
	if err := b.DeclareVolumeMaster(volume); err != nil {
		return weed.NoPlant, err
	}

	m := &mixer{b: b}
	fc, err := b.FilterClass(templates.Filter{
		Name:        FilterName,
		Author:      "salsaman",
		Version:     1,
		Flags:       weed.FilterIsConverter | weed.FilterHintProcessLast,
		Init:        m.init,
		Process:     m.process,
		InChannels:  []weed.Handle{in},
		OutChannels: []weed.Handle{out},
		InParams:    []weed.Handle{volume, pan, swap},
	})
	if err != nil {
		return weed.NoPlant, err
	}
	if err := b.AddFilterClass(info, fc); err != nil {
		return weed.NoPlant, err
	}
	if err := b.SetPackageVersion(info, PackageVersion); err != nil {
		return weed.NoPlant, err
	}
	return info, nil
}

type mixer struct {
	b *templates.Builder
}

// init hides pan and swap unless the input is stereo.
func (m *mixer) init(inst weed.Handle) weed.Status {
	in, err := m.b.InChannels(inst)
	if err != nil || len(in) == 0 {
		return weed.StatusNoSuchElement
	}
	f, err := m.b.ReadFrame(in[0])
	if err != nil {
		return weed.StatusOf(err)
	}
	params, err := m.b.InParams(inst)
	if err != nil || len(params) < 3 {
		return weed.StatusNoSuchElement
	}
	for _, p := range params[1:3] {
		tmpl, err := m.b.ParamTemplate(p)
		if err != nil {
			return weed.StatusOf(err)
		}
		if err := m.b.SetHidden(tmpl, f.AudioChannels != 2); err != nil {
			return weed.StatusOf(err)
		}
	}
	return weed.StatusSuccess
}

func (m *mixer) process(inst weed.Handle, _ int64) weed.Status {
	in, err := m.b.InChannels(inst)
	if err != nil {
		return weed.StatusOf(err)
	}
	out, err := m.b.OutChannels(inst)
	if err != nil || len(out) == 0 {
		return weed.StatusNoSuchElement
	}
	dst, err := m.b.ReadFrame(out[0])
	if err != nil {
		return weed.StatusOf(err)
	}
	params, err := m.b.InParams(inst)
	if err != nil || len(params) < 3 {
		return weed.StatusNoSuchElement
	}
	vol, err := m.b.ParamDoubles(params[0])
	if err != nil {
		return weed.StatusOf(err)
	}
	pan, err := m.b.ParamDoubles(params[1])
	if err != nil {
		return weed.StatusOf(err)
	}
	swap, err := m.b.Core().GetBools(params[2], weed.LeafValue)
	if err != nil {
		return weed.StatusOf(err)
	}

	srcs := make([][][]float32, 0, len(in))
	for _, ch := range in {
		f, err := m.b.ReadFrame(ch)
		if err != nil {
			return weed.StatusOf(err)
		}
		if f.Disabled {
			srcs = append(srcs, nil)
			continue
		}
		srcs = append(srcs, f.Audio)
	}
	mix(dst.Audio, srcs, vol, pan, swap)
	return weed.StatusSuccess
}
