// Package frame defines the video and audio frame shapes that cross the
// interop boundary, plus the plane-copy and pixel-format helpers the
// delivery paths share.
package frame

import "fmt"

// I420AVideoFrame is a planar YUV 4:2:0 frame with an optional alpha plane.
// This is the native format remote video is delivered in.
type I420AVideoFrame struct {
	// Width of the frame in pixels.
	Width int32

	// Height of the frame in pixels.
	Height int32

	// Per-plane row strides in bytes. Strides may exceed the visible row
	// width when rows carry padding.
	YStride int32
	UStride int32
	VStride int32
	AStride int32

	// Plane data. AData is nil when the frame carries no alpha plane.
	YData []byte
	UData []byte
	VData []byte
	AData []byte
}

// NewI420AFrame allocates a tightly packed frame. alpha controls whether an
// A plane is allocated.
func NewI420AFrame(width, height int32, alpha bool) *I420AVideoFrame {
	cw := (width + 1) / 2
	ch := (height + 1) / 2
	f := &I420AVideoFrame{
		Width:   width,
		Height:  height,
		YStride: width,
		UStride: cw,
		VStride: cw,
		YData:   make([]byte, width*height),
		UData:   make([]byte, cw*ch),
		VData:   make([]byte, cw*ch),
	}
	if alpha {
		f.AStride = width
		f.AData = make([]byte, width*height)
	}
	return f
}

// HasAlpha reports whether the frame carries an alpha plane.
func (f *I420AVideoFrame) HasAlpha() bool { return len(f.AData) > 0 }

// ChromaWidth returns the width of the U and V planes in pixels.
func (f *I420AVideoFrame) ChromaWidth() int32 { return (f.Width + 1) / 2 }

// ChromaHeight returns the height of the U and V planes in rows.
func (f *I420AVideoFrame) ChromaHeight() int32 { return (f.Height + 1) / 2 }

// Validate checks that every plane is large enough for the declared
// dimensions and strides.
func (f *I420AVideoFrame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame: bad dimensions %dx%d", f.Width, f.Height)
	}
	if f.YStride < f.Width || f.UStride < f.ChromaWidth() || f.VStride < f.ChromaWidth() {
		return fmt.Errorf("frame: stride smaller than row width")
	}
	if int32(len(f.YData)) < planeSize(f.YStride, f.Height, f.Width) {
		return fmt.Errorf("frame: Y plane too small: %d bytes", len(f.YData))
	}
	if int32(len(f.UData)) < planeSize(f.UStride, f.ChromaHeight(), f.ChromaWidth()) {
		return fmt.Errorf("frame: U plane too small: %d bytes", len(f.UData))
	}
	if int32(len(f.VData)) < planeSize(f.VStride, f.ChromaHeight(), f.ChromaWidth()) {
		return fmt.Errorf("frame: V plane too small: %d bytes", len(f.VData))
	}
	if f.HasAlpha() {
		if f.AStride < f.Width {
			return fmt.Errorf("frame: stride smaller than row width")
		}
		if int32(len(f.AData)) < planeSize(f.AStride, f.Height, f.Width) {
			return fmt.Errorf("frame: A plane too small: %d bytes", len(f.AData))
		}
	}
	return nil
}

// planeSize is the minimum byte count for rows of the given stride where the
// last row only needs the visible width.
func planeSize(stride, rows, width int32) int32 {
	if rows == 0 {
		return 0
	}
	return stride*(rows-1) + width
}

// Clone deep-copies the frame into tightly packed planes.
func (f *I420AVideoFrame) Clone() *I420AVideoFrame {
	c := NewI420AFrame(f.Width, f.Height, f.HasAlpha())
	CopyPlane(c.YData, int(c.YStride), f.YData, int(f.YStride), int(f.Width), int(f.Height))
	CopyPlane(c.UData, int(c.UStride), f.UData, int(f.UStride), int(f.ChromaWidth()), int(f.ChromaHeight()))
	CopyPlane(c.VData, int(c.VStride), f.VData, int(f.VStride), int(f.ChromaWidth()), int(f.ChromaHeight()))
	if f.HasAlpha() {
		CopyPlane(c.AData, int(c.AStride), f.AData, int(f.AStride), int(f.Width), int(f.Height))
	}
	return c
}

// ARGBVideoFrame is a single-plane 32-bit frame in little-endian ARGB order,
// i.e. bytes B, G, R, A in memory.
type ARGBVideoFrame struct {
	Width  int32
	Height int32

	// Stride is the row pitch in bytes, at least 4*Width.
	Stride int32

	Data []byte
}

// NewARGBFrame allocates a tightly packed 32-bit frame.
func NewARGBFrame(width, height int32) *ARGBVideoFrame {
	return &ARGBVideoFrame{
		Width:  width,
		Height: height,
		Stride: width * 4,
		Data:   make([]byte, width*height*4),
	}
}

// Validate checks the buffer against the declared dimensions and stride.
func (f *ARGBVideoFrame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame: bad dimensions %dx%d", f.Width, f.Height)
	}
	if f.Stride < f.Width*4 {
		return fmt.Errorf("frame: stride %d smaller than row width", f.Stride)
	}
	if int32(len(f.Data)) < planeSize(f.Stride, f.Height, f.Width*4) {
		return fmt.Errorf("frame: plane too small: %d bytes", len(f.Data))
	}
	return nil
}
