package expreplay

import "github.com/pkg/errors"

// ExpReplayError implements errors unique to the replay memory
type ExpReplayError struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *ExpReplayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Cause returns the underlying error so that errors.Cause unwraps it
func (e *ExpReplayError) Cause() error {
	return e.Err
}

var errEmptyCache = errors.New("cache empty")

var errInsufficientSamples = errors.New("fewer valid transitions than " +
	"batch size")

// IsInsufficientSamples returns whether or not an error reports that
// there are insufficient valid transitions in the memory to sample a
// batch.
func IsInsufficientSamples(err error) bool {
	return errors.Cause(err) == errInsufficientSamples
}

// IsEmptyBuffer returns whether or not an error reports that a
// replay memory is empty.
func IsEmptyBuffer(err error) bool {
	return errors.Cause(err) == errEmptyCache
}
