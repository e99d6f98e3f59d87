package host

import (
	"github.com/danmuck/weedcore/internal/weed"
)

// Category groups filter classes by their channel shape.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryGenerator
	CategoryTransition
	CategoryEffect
	CategoryUtility
	CategoryCompositor
	CategoryTap
	CategorySplitter
	CategoryConverter
)

// Subcategories refine transitions and the audio-only shapes.
const (
	SubNone       Category = iota
	SubAudioVideo Category = iota + 8
	SubVideoOnly
	SubAudioOnly
	SubAudioMixer
	SubAudioEffect
	SubVolumeController
)

var categoryNames = map[Category]string{
	CategoryGenerator:   "generator",
	CategoryTransition:  "transition",
	CategoryEffect:      "effect",
	CategoryUtility:     "utility",
	CategoryCompositor:  "compositor",
	CategoryTap:         "tap",
	CategorySplitter:    "splitter",
	CategoryConverter:   "converter",
	SubAudioVideo:       "audio/video",
	SubVideoOnly:        "video only",
	SubAudioOnly:        "audio only",
	SubAudioMixer:       "audio mixer",
	SubAudioEffect:      "audio effect",
	SubVolumeController: "audio volume controller",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Categorise places a filter by its flags and the number of required
// input and output channels.
func Categorise(flags int32, in, out int) Category {
	switch {
	case flags&weed.FilterIsConverter != 0:
		return CategoryConverter
	case in == 0 && out > 0:
		return CategoryGenerator
	case out > 1:
		return CategorySplitter
	case in > 2 && out == 1:
		return CategoryCompositor
	case in == 2 && out == 1:
		return CategoryTransition
	case in == 1 && out == 1:
		return CategoryEffect
	case in > 0 && out == 0:
		return CategoryTap
	case in == 0 && out == 0:
		return CategoryUtility
	}
	return CategoryUnknown
}

// Subcategorise refines c. videoIn reports whether any input channel
// carries video; transition whether an input parameter is declared as
// the transition control.
func Subcategorise(c Category, videoIn, transition bool) Category {
	switch {
	case c == CategoryTransition && !transition:
		return SubVideoOnly
	case c == CategoryTransition && !videoIn:
		return SubAudioOnly
	case c == CategoryTransition:
		return SubAudioVideo
	case videoIn:
		return SubNone
	case c == CategoryCompositor:
		return SubAudioMixer
	case c == CategoryGenerator:
		return SubAudioEffect
	case c == CategoryConverter:
		return SubVolumeController
	}
	return SubNone
}
