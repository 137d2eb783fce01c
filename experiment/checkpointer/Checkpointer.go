// Package checkpointer implements step-numbered checkpoints of the
// online weights of an agent, from which training can be resumed or
// evaluation play can be started.
package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samuelfneumann/pongdqn/network"
	ts "github.com/samuelfneumann/pongdqn/timestep"
	"k8s.io/klog/v2"
)

// DefaultKeepLast is the default number of checkpoint files retained
const DefaultKeepLast = 30

// Checkpointer checkpoints an agent based on timestep.TimeSteps
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}

// Snapshot is the persisted state of a training run
type Snapshot struct {
	Step                 int
	BestAvgEpisodeReward float64
	Weights              network.Weights

	// Fingerprint identifies the network topology the weights belong to
	Fingerprint string
}

// Fingerprint returns an identifier of the names and shapes of a set of
// weights. Weights of networks with the same topology have the same
// fingerprint.
func Fingerprint(w network.Weights) string {
	var b strings.Builder
	for i, name := range w.Names {
		fmt.Fprintf(&b, "%v%v;", name, w.Shapes[i])
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.String())).String()
}

// Dir stores checkpoints as gob encoded Snapshots in a directory, one
// file per checkpointed step. Only the KeepLast most recent files are
// retained.
type Dir struct {
	path     string
	keepLast int
}

// NewDir returns a Dir storing checkpoints at path, creating the
// directory if needed. A keepLast < 1 uses DefaultKeepLast.
func NewDir(path string, keepLast int) (*Dir, error) {
	if path == "" {
		return nil, fmt.Errorf("newDir: a checkpoint directory is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrap(err, "newDir: could not create directory")
	}
	if keepLast < 1 {
		keepLast = DefaultKeepLast
	}
	return &Dir{path: path, keepLast: keepLast}, nil
}

// Path returns the directory holding the checkpoints
func (d *Dir) Path() string {
	return d.path
}

// Save writes a checkpoint of the weights at the global step. The file
// is written to a temporary file first and renamed into place, so an
// interrupted save never leaves a partial checkpoint behind.
func (d *Dir) Save(step int, bestAvgEpisodeReward float64,
	w network.Weights) error {
	snapshot := Snapshot{
		Step:                 step,
		BestAvgEpisodeReward: bestAvgEpisodeReward,
		Weights:              w,
		Fingerprint:          Fingerprint(w),
	}

	tmp, err := os.CreateTemp(d.path, ".tmp-"+Filename(step)+"-*")
	if err != nil {
		return errors.Wrap(err, "save: could not create checkpoint file")
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(snapshot); err != nil {
		tmp.Close()
		return errors.Wrap(err, "save: could not encode checkpoint")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "save")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "save")
	}

	target := filepath.Join(d.path, Filename(step))
	if err := os.Rename(tmp.Name(), target); err != nil {
		return errors.Wrap(err, "save: could not move checkpoint into place")
	}
	klog.V(1).Infof("saved checkpoint %v", target)

	return errors.Wrap(d.prune(), "save")
}

// prune removes all but the most recent keepLast checkpoint files
func (d *Dir) prune() error {
	steps, err := d.Steps()
	if err != nil {
		return err
	}
	for len(steps) > d.keepLast {
		name := filepath.Join(d.path, Filename(steps[0]))
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "could not remove %v", name)
		}
		steps = steps[1:]
	}
	return nil
}

// Steps returns the steps of all checkpoints in the directory in
// increasing order
func (d *Dir) Steps() ([]int, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, errors.Wrap(err, "steps")
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return enumerate(names), nil
}

// Load loads the checkpoint of a global step
func (d *Dir) Load(step int) (Snapshot, error) {
	file, err := os.Open(filepath.Join(d.path, Filename(step)))
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "load")
	}
	defer file.Close()

	var snapshot Snapshot
	if err := gob.NewDecoder(file).Decode(&snapshot); err != nil {
		return Snapshot{}, errors.Wrapf(err, "load: could not decode "+
			"checkpoint at step %v", step)
	}
	if snapshot.Fingerprint != Fingerprint(snapshot.Weights) {
		return Snapshot{}, fmt.Errorf("load: checkpoint at step %v does not "+
			"match its fingerprint", step)
	}
	return snapshot, nil
}

// Latest returns the most recent checkpoint. The boolean is false if
// the directory holds no checkpoints.
func (d *Dir) Latest() (Snapshot, bool, error) {
	steps, err := d.Steps()
	if err != nil {
		return Snapshot{}, false, errors.Wrap(err, "latest")
	}
	if len(steps) == 0 {
		return Snapshot{}, false, nil
	}
	snapshot, err := d.Load(steps[len(steps)-1])
	if err != nil {
		return Snapshot{}, false, errors.Wrap(err, "latest")
	}
	return snapshot, true, nil
}

// Restorer is an agent whose training can be continued from a
// checkpoint
type Restorer interface {
	Restore(step int, bestAvgEpisodeReward float64, w network.Weights) error
	Weights() network.Weights
}

// FrozenLoader is an agent which can play with fixed weights
type FrozenLoader interface {
	LoadFrozen(w network.Weights) error
	Weights() network.Weights
}

// checkTopology returns an error if snapshot was saved from a network
// with a different topology than the one holding current
func checkTopology(snapshot Snapshot, current network.Weights) error {
	if want := Fingerprint(current); snapshot.Fingerprint != want {
		return fmt.Errorf("checkpoint at step %v has fingerprint %v, the "+
			"agent's network has %v", snapshot.Step, snapshot.Fingerprint,
			want)
	}
	return nil
}

// Resume restores the most recent checkpoint into r. It returns the
// step training continues from, which is 0 if there is no checkpoint.
func (d *Dir) Resume(r Restorer) (int, error) {
	snapshot, ok, err := d.Latest()
	if err != nil {
		return 0, errors.Wrap(err, "resume")
	}
	if !ok {
		klog.Infof("no checkpoint found in %v, starting from scratch", d.path)
		return 0, nil
	}
	if err := checkTopology(snapshot, r.Weights()); err != nil {
		return 0, errors.Wrap(err, "resume")
	}

	err = r.Restore(snapshot.Step, snapshot.BestAvgEpisodeReward,
		snapshot.Weights)
	if err != nil {
		return 0, errors.Wrap(err, "resume")
	}
	klog.Infof("resumed from step %v (best avg episode reward %.4f)",
		snapshot.Step, snapshot.BestAvgEpisodeReward)
	return snapshot.Step, nil
}

// LoadFrozen loads the weights of the most recent checkpoint into l.
// It is an error for the directory to hold no checkpoint.
func (d *Dir) LoadFrozen(l FrozenLoader) error {
	snapshot, ok, err := d.Latest()
	if err != nil {
		return errors.Wrap(err, "loadFrozen")
	}
	if !ok {
		return fmt.Errorf("loadFrozen: no checkpoint found in %v", d.path)
	}
	if err := checkTopology(snapshot, l.Weights()); err != nil {
		return errors.Wrap(err, "loadFrozen")
	}
	return errors.Wrap(l.LoadFrozen(snapshot.Weights), "loadFrozen")
}
