// Package history implements the fixed-depth frame history that forms
// the agent's state.
package history

import (
	"fmt"

	"github.com/gammazero/deque"
	ts "github.com/samuelfneumann/pongdqn/timestep"
)

// History holds the most recent Length() preprocessed frames, oldest
// first. It is not safe for concurrent use.
type History struct {
	length int
	width  int
	height int
	frames *deque.Deque[ts.Frame]
}

// New returns a new, empty History of the given depth for frames of
// the given size.
func New(length, width, height int) (*History, error) {
	if length < 1 {
		return nil, fmt.Errorf("new: history length must be positive, "+
			"have %v", length)
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("new: frame dimensions must be positive, "+
			"have (%v, %v)", width, height)
	}

	return &History{
		length: length,
		width:  width,
		height: height,
		frames: deque.New[ts.Frame](length + 1),
	}, nil
}

// Length returns the number of frames in a full history
func (h *History) Length() int {
	return h.length
}

// Features returns the number of values in a flattened history
func (h *History) Features() int {
	return h.length * h.width * h.height
}

// Full returns whether the history holds Length() frames
func (h *History) Full() bool {
	return h.frames.Len() == h.length
}

// Add pushes a frame onto the history, evicting the oldest frame if
// the history is full. The frame is copied.
func (h *History) Add(f ts.Frame) {
	h.check(f)
	h.frames.PushBack(f.Clone())
	for h.frames.Len() > h.length {
		h.frames.PopFront()
	}
}

// Reset clears the history and fills it with Length() copies of f
func (h *History) Reset(f ts.Frame) {
	h.check(f)
	h.frames.Clear()
	for i := 0; i < h.length; i++ {
		h.frames.PushBack(f.Clone())
	}
}

// Get returns copies of the frames in the history, oldest first. Get
// panics if the history has not been filled.
func (h *History) Get() []ts.Frame {
	h.mustBeFull()

	out := make([]ts.Frame, h.length)
	for i := 0; i < h.length; i++ {
		out[i] = h.frames.At(i).Clone()
	}
	return out
}

// Input returns the history flattened into a newly allocated slice,
// one frame after another (oldest first), with pixels scaled into
// [0, 1]. This is the channel-first layout expected by the network.
func (h *History) Input() []float64 {
	h.mustBeFull()

	size := h.width * h.height
	out := make([]float64, h.Features())
	for i := 0; i < h.length; i++ {
		h.frames.At(i).Normalized(out[i*size : (i+1)*size])
	}
	return out
}

// Latest returns a copy of the most recently added frame
func (h *History) Latest() ts.Frame {
	h.mustBeFull()
	return h.frames.Back().Clone()
}

func (h *History) mustBeFull() {
	if !h.Full() {
		panic(fmt.Sprintf("history: read before the history was filled "+
			"(%v of %v frames)", h.frames.Len(), h.length))
	}
}

func (h *History) check(f ts.Frame) {
	if f.Width != h.width || f.Height != h.height {
		panic(fmt.Sprintf("history: invalid frame size \n\twant(%v x %v)"+
			"\n\thave(%v x %v)", h.width, h.height, f.Width, f.Height))
	}
	if err := f.Validate(); err != nil {
		panic(fmt.Sprintf("history: %v", err))
	}
}
