package dwt

// Forward53Fast is the plain-Go 5-3 lifting kernel. The spec leaves SIMD
// vectorization of this kernel to implementers; this module vectorizes
// nothing, since none of the retrieved examples supplied working
// platform-specific kernels for this domain to ground such code on.
func Forward53Fast(data []int32, length int) {
	Forward53(data, length)
}

// clearInt32SliceFast uses a simple loop on non-SIMD platforms.
func clearInt32SliceFast(data []int32) {
	for i := range data {
		data[i] = 0
	}
}
