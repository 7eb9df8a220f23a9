package frame

// HeightRoundMode controls how delivered frame heights are aligned for
// consumers with block-size constraints on textures or encoders.
type HeightRoundMode int32

const (
	// RoundNone delivers frames at their native height.
	RoundNone HeightRoundMode = iota

	// RoundCrop shrinks the visible height down to a multiple of 16.
	RoundCrop

	// RoundPad grows the height up to a multiple of 16 by repeating the
	// last row of every plane.
	RoundPad
)

const heightAlign = 16

// RoundHeight applies mode to f. RoundNone and already-aligned frames come
// back unchanged. RoundCrop returns a shallow copy sharing the planes with a
// reduced Height. RoundPad allocates fresh planes.
func RoundHeight(f *I420AVideoFrame, mode HeightRoundMode) *I420AVideoFrame {
	if mode == RoundNone || f.Height%heightAlign == 0 {
		return f
	}
	switch mode {
	case RoundCrop:
		h := f.Height - f.Height%heightAlign
		if h <= 0 {
			return f
		}
		c := *f
		c.Height = h
		return &c
	case RoundPad:
		h := f.Height + (heightAlign - f.Height%heightAlign)
		p := NewI420AFrame(f.Width, h, f.HasAlpha())
		padPlane(p.YData, int(p.YStride), f.YData, int(f.YStride), int(f.Width), int(f.Height), int(h))
		padPlane(p.UData, int(p.UStride), f.UData, int(f.UStride), int(f.ChromaWidth()), int(f.ChromaHeight()), int(p.ChromaHeight()))
		padPlane(p.VData, int(p.VStride), f.VData, int(f.VStride), int(f.ChromaWidth()), int(f.ChromaHeight()), int(p.ChromaHeight()))
		if f.HasAlpha() {
			padPlane(p.AData, int(p.AStride), f.AData, int(f.AStride), int(f.Width), int(f.Height), int(h))
		}
		return p
	default:
		return f
	}
}

// padPlane copies srcRows rows then repeats the final row up to dstRows.
func padPlane(dst []byte, dstStride int, src []byte, srcStride int, rowBytes, srcRows, dstRows int) {
	CopyPlane(dst, dstStride, src, srcStride, rowBytes, srcRows)
	if srcRows <= 0 {
		return
	}
	last := src[(srcRows-1)*srcStride : (srcRows-1)*srcStride+rowBytes]
	for r := srcRows; r < dstRows; r++ {
		copy(dst[r*dstStride:r*dstStride+rowBytes], last)
	}
}

// I420AToARGB converts src into a little-endian ARGB frame (bytes B,G,R,A)
// using the BT.601 limited-range integer coefficients. The alpha plane is
// honored when present, otherwise alpha is opaque.
func I420AToARGB(src *I420AVideoFrame) *ARGBVideoFrame {
	dst := NewARGBFrame(src.Width, src.Height)
	w, h := int(src.Width), int(src.Height)
	for y := 0; y < h; y++ {
		yRow := src.YData[y*int(src.YStride):]
		uRow := src.UData[(y/2)*int(src.UStride):]
		vRow := src.VData[(y/2)*int(src.VStride):]
		var aRow []byte
		if src.HasAlpha() {
			aRow = src.AData[y*int(src.AStride):]
		}
		out := dst.Data[y*int(dst.Stride):]
		for x := 0; x < w; x++ {
			c := 298 * (int(yRow[x]) - 16)
			d := int(uRow[x/2]) - 128
			e := int(vRow[x/2]) - 128
			b := clamp8((c + 516*d + 128) >> 8)
			g := clamp8((c - 100*d - 208*e + 128) >> 8)
			r := clamp8((c + 409*e + 128) >> 8)
			a := byte(255)
			if aRow != nil {
				a = aRow[x]
			}
			o := x * 4
			out[o] = b
			out[o+1] = g
			out[o+2] = r
			out[o+3] = a
		}
	}
	return dst
}

// ARGBToI420 converts a little-endian ARGB frame (bytes B,G,R,A) into an
// I420 frame with BT.601 limited-range integer coefficients. Chroma is
// subsampled by averaging each 2x2 block; the alpha channel is dropped.
func ARGBToI420(src *ARGBVideoFrame) *I420AVideoFrame {
	dst := NewI420AFrame(src.Width, src.Height, false)
	w, h := int(src.Width), int(src.Height)
	stride := int(src.Stride)

	for y := 0; y < h; y++ {
		in := src.Data[y*stride:]
		out := dst.YData[y*int(dst.YStride):]
		for x := 0; x < w; x++ {
			b := int(in[x*4])
			g := int(in[x*4+1])
			r := int(in[x*4+2])
			out[x] = clamp8(((66*r + 129*g + 25*b + 128) >> 8) + 16)
		}
	}

	cw, ch := int(dst.ChromaWidth()), int(dst.ChromaHeight())
	for cy := 0; cy < ch; cy++ {
		uRow := dst.UData[cy*int(dst.UStride):]
		vRow := dst.VData[cy*int(dst.VStride):]
		for cx := 0; cx < cw; cx++ {
			var rSum, gSum, bSum, n int
			for dy := 0; dy < 2; dy++ {
				y := cy*2 + dy
				if y >= h {
					break
				}
				in := src.Data[y*stride:]
				for dx := 0; dx < 2; dx++ {
					x := cx*2 + dx
					if x >= w {
						break
					}
					bSum += int(in[x*4])
					gSum += int(in[x*4+1])
					rSum += int(in[x*4+2])
					n++
				}
			}
			r, g, b := rSum/n, gSum/n, bSum/n
			uRow[cx] = clamp8(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
			vRow[cx] = clamp8(((112*r - 94*g - 18*b + 128) >> 8) + 128)
		}
	}
	return dst
}

func clamp8(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
