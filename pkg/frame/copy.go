package frame

// CopyPlane copies rows of rowBytes bytes from src to dst honoring the two
// strides. When both strides equal the row width the planes are contiguous
// and the copy collapses into a single linear copy.
func CopyPlane(dst []byte, dstStride int, src []byte, srcStride int, rowBytes, rows int) {
	if rows <= 0 || rowBytes <= 0 {
		return
	}
	if dstStride == rowBytes && srcStride == rowBytes {
		copy(dst[:rowBytes*rows], src[:rowBytes*rows])
		return
	}
	for r := 0; r < rows; r++ {
		copy(dst[r*dstStride:r*dstStride+rowBytes], src[r*srcStride:r*srcStride+rowBytes])
	}
}
