//go:build gym

package experiment

import (
	"github.com/samuelfneumann/pongdqn/environment"
	"github.com/samuelfneumann/pongdqn/environment/gym"
)

func init() {
	RegisterSource("gym", func(name string,
		c Config) (environment.FrameSource, error) {
		return gym.New(name, c.Seed)
	})
}
