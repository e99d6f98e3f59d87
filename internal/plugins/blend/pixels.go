package blend

import (
	"math"

	"github.com/danmuck/weedcore/internal/templates"
	"github.com/danmuck/weedcore/internal/weed"
)

const fpBits = 16

// Fixed point luma tables, studio range.
var yR, yG, yB = lumaTables()

func lumaTables() (r, g, b [256]int32) {
	scale := float64(int32(1) << fpBits)
	for i := range 256 {
		v := float64(i) * 219.0 / 255.0 * scale
		r[i] = int32(math.Round(0.2100 * v))
		g[i] = int32(math.Round(0.587 * v))
		b[i] = int32(math.Round(0.114*v + scale/2 + 16.0*scale))
	}
	return r, g, b
}

// luma of the pixel at px, honouring the channel byte order.
func luma(palette int32, px []byte) byte {
	r, g, b := px[2], px[1], px[0]
	if palette == weed.PaletteRGB24 {
		r, b = b, r
	}
	return byte((yR[r] + yG[g] + yB[b]) >> fpBits)
}

func blend(m mode, factor byte, src1, src2, dst templates.Frame) {
	neg := factor ^ 0xff
	inplace := &dst.Pixels[0] == &src1.Pixels[0]
	width := int(src1.Width) * 3
	for y := range int(src1.Height) {
		s1 := src1.Pixels[y*int(src1.Rowstride):][:width]
		s2 := src2.Pixels[y*int(src2.Rowstride):][:width]
		d := dst.Pixels[y*int(dst.Rowstride):][:width]
		for j := 0; j < width; j += 3 {
			switch m {
			case chroma:
				for k := j; k < j+3; k++ {
					d[k] = byte((int(s2[k])*int(factor) + int(s1[k])*int(neg)) >> 8)
				}
			case lumaOverlay:
				pick(d[j:j+3], s1[j:j+3], s2[j:j+3], luma(src1.Palette, s1[j:]) < factor, inplace)
			case lumaUnderlay:
				pick(d[j:j+3], s1[j:j+3], s2[j:j+3], luma(src2.Palette, s2[j:]) > neg, inplace)
			case negLumaOverlay:
				pick(d[j:j+3], s1[j:j+3], s2[j:j+3], luma(src1.Palette, s1[j:]) > neg, inplace)
			}
		}
	}
}

// pick copies the second input when key holds, otherwise the first.
// In place the first input is already there.
func pick(d, s1, s2 []byte, key, inplace bool) {
	switch {
	case key:
		copy(d, s2)
	case !inplace:
		copy(d, s1)
	}
}
