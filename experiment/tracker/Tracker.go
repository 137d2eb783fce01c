package tracker

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
	ts "github.com/samuelfneumann/pongdqn/timestep"
)

// Tracker keeps track of per-episode data from the TimeSteps of a run
// and saves the data after the run has finished
type Tracker interface {
	Track(t ts.TimeStep)
	Save() error
}

// Return tracks and saves the episodic return in a run, including the
// reward of each episode's final step.
//
// An episode must finish for this Tracker to save its data. If the last
// episode in a run does not finish, that episode's return will not be
// saved.
type Return struct {
	currentReturn  float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker
func NewReturn(filename string) *Return {
	return &Return{filename: filename, episodeReturns: []float64{}}
}

// Track accumulates the reward of a TimeStep into the current
// episode's return
func (r *Return) Track(step ts.TimeStep) {
	r.currentReturn += step.Reward
	if step.Last() {
		r.episodeReturns = append(r.episodeReturns, r.currentReturn)
		r.currentReturn = 0.0
	}
}

// Data returns the returns of finished episodes
func (r *Return) Data() []float64 {
	return append([]float64(nil), r.episodeReturns...)
}

// Save saves the data tracked by the Return Tracker to disk.
func (r *Return) Save() error {
	return save(r.filename, r.episodeReturns)
}

// EpisodeLength tracks and saves the lengths of episodes in a run.
// An episode must finish for this Tracker to save its data.
type EpisodeLength struct {
	current        int
	episodeLengths []int
	filename       string
}

// NewEpisodeLength returns a new EpisodeLength tracker which will save
// its data at the specified location filename
func NewEpisodeLength(filename string) *EpisodeLength {
	return &EpisodeLength{filename: filename, episodeLengths: []int{}}
}

// Track counts the steps of the current episode
func (e *EpisodeLength) Track(t ts.TimeStep) {
	e.current++
	if t.Last() {
		e.episodeLengths = append(e.episodeLengths, e.current)
		e.current = 0
	}
}

// Data returns the lengths of finished episodes
func (e *EpisodeLength) Data() []int {
	return append([]int(nil), e.episodeLengths...)
}

// Save saves the data tracked by the EpisodeLength Tracker to disk.
func (e *EpisodeLength) Save() error {
	return save(e.filename, e.episodeLengths)
}

func save(filename string, data interface{}) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "save: could not open save file")
	}
	defer file.Close()

	if err = gob.NewEncoder(file).Encode(data); err != nil {
		return errors.Wrap(err, "save: could not encode data")
	}
	return nil
}

// LoadData loads and returns the data saved by a Return Tracker
func LoadData(filename string) ([]float64, error) {
	var data []float64
	return data, load(filename, &data)
}

// LoadLengths loads and returns the data saved by an EpisodeLength
// Tracker
func LoadLengths(filename string) ([]int, error) {
	var data []int
	return data, load(filename, &data)
}

func load(filename string, data interface{}) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "load: could not open data file")
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(data); err != nil {
		return errors.Wrap(err, "load: could not decode data")
	}
	return nil
}
