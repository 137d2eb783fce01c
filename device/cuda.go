//go:build cuda

package device

import "gorgonia.org/cu"

// NumGPUs returns the number of CUDA devices
func NumGPUs() (int, error) {
	return cu.NumDevices()
}
