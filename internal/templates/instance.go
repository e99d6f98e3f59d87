package templates

import (
	"fmt"

	"github.com/danmuck/weedcore/internal/weed"
)

// Frame is what a channel plant carries while an instance runs. Video
// channels fill the pixel fields, audio channels the audio ones.
type Frame struct {
	Width     int32
	Height    int32
	Palette   int32
	Rowstride int32
	Pixels    []byte

	AudioRate     int32
	AudioChannels int32
	Audio         [][]float32

	Disabled bool
}

func (b *Builder) InChannels(inst weed.Handle) ([]weed.Handle, error) {
	return b.c.GetPlants(inst, weed.LeafInChannels)
}

func (b *Builder) OutChannels(inst weed.Handle) ([]weed.Handle, error) {
	return b.c.GetPlants(inst, weed.LeafOutChannels)
}

func (b *Builder) InParams(inst weed.Handle) ([]weed.Handle, error) {
	return b.c.GetPlants(inst, weed.LeafInParameters)
}

func (b *Builder) OutParams(inst weed.Handle) ([]weed.Handle, error) {
	return b.c.GetPlants(inst, weed.LeafOutParameters)
}

// ReadFrame collects the frame leaves of a channel. Leaves the host did
// not set stay zero.
func (b *Builder) ReadFrame(ch weed.Handle) (Frame, error) {
	var f Frame
	for _, l := range []struct {
		key string
		dst *int32
	}{
		{weed.LeafWidth, &f.Width},
		{weed.LeafHeight, &f.Height},
		{weed.LeafCurrentPal, &f.Palette},
		{weed.LeafRowstrides, &f.Rowstride},
		{weed.LeafAudioRate, &f.AudioRate},
		{weed.LeafAudioChannels, &f.AudioChannels},
	} {
		if err := weed.Optional(b.c.Get(ch, l.key, 0, l.dst)); err != nil {
			return Frame{}, fmt.Errorf("read frame %s: %w", l.key, err)
		}
	}
	if err := weed.Optional(b.c.Get(ch, weed.LeafDisabled, 0, &f.Disabled)); err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	var px weed.Pointer
	if err := weed.Optional(b.c.Get(ch, weed.LeafPixelData, 0, &px)); err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	f.Pixels, _ = px.([]byte)
	var audio weed.Pointer
	if err := weed.Optional(b.c.Get(ch, weed.LeafAudioData, 0, &audio)); err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	f.Audio, _ = audio.([][]float32)
	return f, nil
}

// ParamInt32 reads the live value of an integer parameter.
func (b *Builder) ParamInt32(param weed.Handle) (int32, error) {
	return b.c.GetInt32(param, weed.LeafValue)
}

func (b *Builder) ParamDouble(param weed.Handle) (float64, error) {
	return b.c.GetDouble(param, weed.LeafValue)
}

func (b *Builder) ParamBool(param weed.Handle) (bool, error) {
	return b.c.GetBool(param, weed.LeafValue)
}

func (b *Builder) ParamString(param weed.Handle) (string, error) {
	return b.c.GetString(param, weed.LeafValue)
}

// ParamDoubles reads every element of a value-per-channel parameter.
func (b *Builder) ParamDoubles(param weed.Handle) ([]float64, error) {
	return b.c.GetDoubles(param, weed.LeafValue)
}

// ParamTemplate returns the template a live parameter was made from.
func (b *Builder) ParamTemplate(param weed.Handle) (weed.Handle, error) {
	return b.c.GetPlant(param, weed.LeafTemplate)
}
