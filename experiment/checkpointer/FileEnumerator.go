package checkpointer

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	prefix    = "model-"
	extension = ".ckpt"
)

// Filename returns the name of the checkpoint file of a global step
func Filename(step int) string {
	return fmt.Sprintf("%v%v%v", prefix, step, extension)
}

// parseStep returns the global step of a checkpoint filename. The
// boolean is false if name is not the name of a checkpoint file.
func parseStep(name string) (int, bool) {
	name = filepath.Base(name)
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, extension) {
		return 0, false
	}
	step, err := strconv.Atoi(strings.TrimSuffix(
		strings.TrimPrefix(name, prefix), extension))
	if err != nil || step < 0 {
		return 0, false
	}
	return step, true
}

// enumerate returns the steps of the checkpoint files among names in
// increasing order
func enumerate(names []string) []int {
	var steps []int
	for _, name := range names {
		if step, ok := parseStep(name); ok {
			steps = append(steps, step)
		}
	}
	sort.Ints(steps)
	return steps
}
