// Package device checks the compute device preconditions of a run
package device

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ParseGPUFraction parses a GPU fraction of the form "idx/num" into the
// fraction of GPU memory 1/(num-idx+1) a process may claim
func ParseGPUFraction(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("parseGPUFraction: a GPU fraction must be " +
			"defined")
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0, errors.Errorf("parseGPUFraction: expected idx/num, have %q",
			s)
	}
	idx, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parseGPUFraction: invalid index in %q", s)
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parseGPUFraction: invalid count in %q", s)
	}

	denominator := num - idx + 1
	if denominator <= 0 {
		return 0, errors.Errorf("parseGPUFraction: %q gives a non-positive "+
			"denominator %v", s, denominator)
	}
	return 1 / denominator, nil
}

// Check returns an error if a GPU is requested but none is available.
// The fraction is validated and logged whether or not a GPU is used.
func Check(useGPU bool, fraction string) error {
	f, err := ParseGPUFraction(fraction)
	if err != nil {
		return errors.Wrap(err, "check")
	}
	klog.Infof("GPU fraction: %.4f", f)

	n, err := NumGPUs()
	if err != nil {
		return errors.Wrap(err, "check: could not count GPUs")
	}
	klog.V(1).Infof("%d GPUs available", n)

	if useGPU && n == 0 {
		return errors.New("check: use_gpu is set but no GPUs are available")
	}
	return nil
}
