package interop

import (
	"unsafe"

	"github.com/thesyncim/rtcbridge/pkg/frame"
)

// MemCopy copies size bytes from src to dst. The regions must not overlap.
func MemCopy(dst, src unsafe.Pointer, size uintptr) Result {
	if size == 0 {
		return ResultSuccess
	}
	if dst == nil || src == nil {
		return ResultInvalidParameter
	}
	copy(unsafe.Slice((*byte)(dst), size), unsafe.Slice((*byte)(src), size))
	return ResultSuccess
}

// MemCopyStride copies elemCount rows of elemSize bytes between buffers
// with independent row pitches. Tightly packed buffers, where both strides
// equal the row size, collapse into one linear copy.
func MemCopyStride(dst unsafe.Pointer, dstStride int32, src unsafe.Pointer, srcStride int32, elemSize, elemCount int32) Result {
	if elemSize < 0 || elemCount < 0 || dstStride < elemSize || srcStride < elemSize {
		return ResultInvalidParameter
	}
	if elemSize == 0 || elemCount == 0 {
		return ResultSuccess
	}
	if dst == nil || src == nil {
		return ResultInvalidParameter
	}
	dstLen := int(dstStride)*(int(elemCount)-1) + int(elemSize)
	srcLen := int(srcStride)*(int(elemCount)-1) + int(elemSize)
	frame.CopyPlane(
		unsafe.Slice((*byte)(dst), dstLen), int(dstStride),
		unsafe.Slice((*byte)(src), srcLen), int(srcStride),
		int(elemSize), int(elemCount),
	)
	return ResultSuccess
}
