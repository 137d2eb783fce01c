//go:build !cuda

package device

// NumGPUs returns the number of CUDA devices, which is always zero
// without the cuda build tag
func NumGPUs() (int, error) {
	return 0, nil
}
