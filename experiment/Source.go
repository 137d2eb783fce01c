package experiment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/pongdqn/environment"
	"github.com/samuelfneumann/pongdqn/environment/pong"
)

// PongTwoPlayer names the built-in two-player Pong frame source
const PongTwoPlayer = "pong2p"

// SourceFactory creates the frame source of a run. The name is the
// part of Config.EnvName following the factory's prefix.
type SourceFactory func(name string, c Config) (environment.FrameSource,
	error)

var factories = map[string]SourceFactory{
	PongTwoPlayer: newPong,
}

// RegisterSource registers a factory for environment names of the form
// "prefix:name"
func RegisterSource(prefix string, f SourceFactory) {
	if _, ok := factories[prefix]; ok {
		panic(fmt.Sprintf("registerSource: source %q already registered",
			prefix))
	}
	factories[prefix] = f
}

// Sources returns the prefixes of all registered frame sources
func Sources() []string {
	prefixes := make([]string, 0, len(factories))
	for prefix := range factories {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// NewFrameSource creates the frame source named by c.EnvName
func NewFrameSource(c Config) (environment.FrameSource, error) {
	prefix, name, _ := strings.Cut(c.EnvName, ":")
	f, ok := factories[prefix]
	if !ok {
		return nil, fmt.Errorf("newFrameSource: unknown environment %q, "+
			"registered sources are %v", c.EnvName, Sources())
	}
	source, err := f(name, c)
	return source, errors.Wrapf(err, "newFrameSource: %v", c.EnvName)
}

// newPong returns two-player Pong with a uniformly random opponent
func newPong(_ string, c Config) (environment.FrameSource, error) {
	game, err := pong.New(c.Pong, c.Seed)
	if err != nil {
		return nil, err
	}
	opponent, err := environment.NewUniformOpponent(
		environment.PlayerBActions, c.Seed+2)
	if err != nil {
		return nil, err
	}
	return environment.NewTwoPlayer(game, opponent), nil
}
