package deepq

import (
	"fmt"

	"github.com/samuelfneumann/pongdqn/utils/floatutils"
)

// BootstrapTargets computes the update targets of a batch of
// transitions. Action values are given row-major, numActions values per
// transition. For a non-terminal transition the target is
//
//	r + γ * Q_target(s', a')
//
// where a' = argmax Q_target(s', ·), or a' = argmax Q_online(s', ·) if
// doubleQ is set. For a terminal transition the target is r.
// nextOnline is only read when doubleQ is set.
func BootstrapTargets(rewards []float64, terminals []bool, nextTarget,
	nextOnline []float64, numActions int, discount float64,
	doubleQ bool) ([]float64, error) {
	n := len(rewards)
	if len(terminals) != n {
		return nil, fmt.Errorf("bootstrapTargets: have %v rewards but %v "+
			"terminals", n, len(terminals))
	}
	if len(nextTarget) != n*numActions {
		return nil, fmt.Errorf("bootstrapTargets: invalid number of target "+
			"action values \n\twant(%v) \n\thave(%v)", n*numActions,
			len(nextTarget))
	}
	if doubleQ && len(nextOnline) != n*numActions {
		return nil, fmt.Errorf("bootstrapTargets: invalid number of online "+
			"action values \n\twant(%v) \n\thave(%v)", n*numActions,
			len(nextOnline))
	}

	targets := make([]float64, n)
	for i := range targets {
		targets[i] = rewards[i]
		if terminals[i] {
			continue
		}

		row := nextTarget[i*numActions : (i+1)*numActions]
		var next float64
		if doubleQ {
			a := floatutils.Argmax(nextOnline[i*numActions : (i+1)*numActions])
			next = row[a]
		} else {
			next = floatutils.Max(row...)
		}
		targets[i] += discount * next
	}
	return targets, nil
}
