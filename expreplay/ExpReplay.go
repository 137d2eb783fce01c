// Package expreplay implements the circular replay memory that stores
// single frames together with the action, reward, and terminal signal
// that produced them. States of HistoryLength frames are reconstructed
// from consecutive frames at sampling time.
package expreplay

import (
	"fmt"

	ts "github.com/samuelfneumann/pongdqn/timestep"
)

// Config implements a specific configuration of a replay Memory
type Config struct {
	MaxReplayCapacity int // Number of frames retained
	SampleSize        int // Batch size returned by Sample()
	HistoryLength     int // Frames per state

	// MaxSampleAttempts bounds the rejection sampling performed for a
	// single batch element. Values < 1 use DefaultSampleAttempts.
	MaxSampleAttempts int
}

// DefaultSampleAttempts is the default bound on rejection sampling per
// batch element
const DefaultSampleAttempts = 256

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.HistoryLength < 1 {
		return fmt.Errorf("validate: history length must be positive, "+
			"have %v", c.HistoryLength)
	}
	if c.SampleSize < 1 {
		return fmt.Errorf("validate: sample size must be positive, "+
			"have %v", c.SampleSize)
	}
	if c.MaxReplayCapacity <= c.HistoryLength+c.SampleSize {
		return fmt.Errorf("validate: capacity (%v) must exceed history "+
			"length + sample size (%v)", c.MaxReplayCapacity,
			c.HistoryLength+c.SampleSize)
	}
	return nil
}

// Create creates and returns the Memory with the specified Config for
// frames of the given size.
func (c Config) Create(width, height int, seed uint64) (*Memory, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	attempts := c.MaxSampleAttempts
	if attempts < 1 {
		attempts = DefaultSampleAttempts
	}

	return New(NewUniformSelector(c.SampleSize, attempts, seed),
		c.MaxReplayCapacity, c.HistoryLength, width, height)
}

// Record is a single stored step: the frame observed after taking
// Action, the Reward received, and whether the step ended the episode.
type Record struct {
	Frame    ts.Frame
	Action   int
	Reward   float64
	Terminal bool
}

// Batch is a batch of transitions. States and NextStates hold Size
// flattened states of Features values each, pixels scaled into [0, 1].
type Batch struct {
	Size       int
	Features   int
	States     []float64
	Actions    []int
	Rewards    []float64
	Terminals  []bool
	NextStates []float64
}

// Memory implements a circular replay memory. Frames are stored once;
// a transition stored at logical position k (0 is the oldest retained
// record) has its state formed by the frames at k-H..k-1 and its next
// state by the frames at k-H+1..k, where H is the history length.
//
// A transition is valid if it has H predecessors in the memory and none
// of the frames k-H..k-1 ends an episode, so that neither state spans
// two episodes. Validity is computed once at insertion and a running
// count of valid transitions is kept, so both Store and Sample avoid
// scanning the memory.
//
// Memory is not safe for concurrent use.
type Memory struct {
	frameCache    []uint8
	actionCache   []int
	rewardCache   []float64
	terminalCache []bool
	validCache    []bool

	width, height int
	frameSize     int
	historyLength int

	currentInUsePos int // Slot written next
	count           int
	isFull          bool
	validCount      int

	sampler Selector

	maxCapacity int
}

// New creates and returns a new Memory. The sampler determines how
// transitions are drawn from the memory.
func New(sampler Selector, maxCapacity, historyLength, width,
	height int) (*Memory, error) {
	if historyLength < 1 {
		return nil, fmt.Errorf("new: history length must be positive")
	}
	if maxCapacity <= historyLength {
		return nil, fmt.Errorf("new: capacity must exceed history length")
	}
	if maxCapacity < sampler.BatchSize() {
		return nil, fmt.Errorf("new: cannot have batch size(%v) > max "+
			"buffer capacity (%v)", sampler.BatchSize(), maxCapacity)
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("new: frame dimensions must be positive")
	}

	frameSize := width * height
	return &Memory{
		frameCache:    make([]uint8, maxCapacity*frameSize),
		actionCache:   make([]int, maxCapacity),
		rewardCache:   make([]float64, maxCapacity),
		terminalCache: make([]bool, maxCapacity),
		validCache:    make([]bool, maxCapacity),

		width:         width,
		height:        height,
		frameSize:     frameSize,
		historyLength: historyLength,

		sampler:     sampler,
		maxCapacity: maxCapacity,
	}, nil
}

// String returns the string representation of the Memory
func (m *Memory) String() string {
	return fmt.Sprintf("Memory | Records: %v/%v  |  Valid: %v  |  "+
		"Write Position: %v", m.count, m.maxCapacity, m.validCount,
		m.currentInUsePos)
}

// BatchSize returns the number of transitions returned by Sample()
func (m *Memory) BatchSize() int {
	return m.sampler.BatchSize()
}

// HistoryLength returns the number of frames in a state
func (m *Memory) HistoryLength() int {
	return m.historyLength
}

// Features returns the number of values in a flattened state
func (m *Memory) Features() int {
	return m.historyLength * m.frameSize
}

// Len returns the number of records currently retained
func (m *Memory) Len() int {
	return m.count
}

// Valid returns the number of valid transitions that can be sampled
func (m *Memory) Valid() int {
	return m.validCount
}

// MaxCapacity returns the maximum number of records retained
func (m *Memory) MaxCapacity() int {
	return m.maxCapacity
}

// Store adds a record to the memory, overwriting the oldest record once
// the memory is full. The frame is copied.
func (m *Memory) Store(frame ts.Frame, action int, reward float64,
	terminal bool) error {
	if frame.Width != m.width || frame.Height != m.height {
		return fmt.Errorf("store: invalid frame size \n\twant(%v x %v)"+
			"\n\thave(%v x %v)", m.width, m.height, frame.Width, frame.Height)
	}
	if len(frame.Pixels) != m.frameSize {
		return fmt.Errorf("store: invalid number of pixels \n\twant(%v)"+
			"\n\thave(%v)", m.frameSize, len(frame.Pixels))
	}

	if m.isFull {
		// The transition at logical position H loses its oldest
		// predecessor and stops being sampleable.
		shifted := m.slot(m.historyLength)
		if m.validCache[shifted] {
			m.validCache[shifted] = false
			m.validCount--
		}
	}

	index := m.currentInUsePos
	copy(m.frameCache[index*m.frameSize:(index+1)*m.frameSize], frame.Pixels)
	m.actionCache[index] = action
	m.rewardCache[index] = reward
	m.terminalCache[index] = terminal

	if !m.isFull {
		m.count++
	}
	m.currentInUsePos = (m.currentInUsePos + 1) % m.maxCapacity
	if !m.isFull && m.currentInUsePos == 0 {
		m.isFull = true
	}

	valid := m.windowIsValid(m.count - 1)
	m.validCache[index] = valid
	if valid {
		m.validCount++
	}
	return nil
}

// At returns a copy of the i-th oldest retained record
func (m *Memory) At(i int) (Record, error) {
	if i < 0 || i >= m.count {
		return Record{}, fmt.Errorf("at: index %v out of range [0, %v)", i,
			m.count)
	}
	index := m.slot(i)

	frame := ts.NewFrame(m.width, m.height)
	copy(frame.Pixels, m.frameCache[index*m.frameSize:(index+1)*m.frameSize])
	return Record{
		Frame:    frame,
		Action:   m.actionCache[index],
		Reward:   m.rewardCache[index],
		Terminal: m.terminalCache[index],
	}, nil
}

// Sample samples and returns a batch of valid transitions drawn
// uniformly with replacement.
func (m *Memory) Sample() (Batch, error) {
	if m.count == 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}
	if m.validCount < m.BatchSize() {
		return Batch{}, &ExpReplayError{
			Op:  "sample",
			Err: errInsufficientSamples,
		}
	}

	positions, err := m.sampler.choose(m)
	if err != nil {
		return Batch{}, &ExpReplayError{Op: "sample", Err: err}
	}

	features := m.Features()
	batch := Batch{
		Size:       len(positions),
		Features:   features,
		States:     make([]float64, len(positions)*features),
		Actions:    make([]int, len(positions)),
		Rewards:    make([]float64, len(positions)),
		Terminals:  make([]bool, len(positions)),
		NextStates: make([]float64, len(positions)*features),
	}
	for i, k := range positions {
		m.fillState(batch.States[i*features:(i+1)*features], k-1)
		m.fillState(batch.NextStates[i*features:(i+1)*features], k)

		index := m.slot(k)
		batch.Actions[i] = m.actionCache[index]
		batch.Rewards[i] = m.rewardCache[index]
		batch.Terminals[i] = m.terminalCache[index]
	}

	return batch, nil
}

// isValid returns whether the transition at logical position k can be
// sampled
func (m *Memory) isValid(k int) bool {
	if k < m.historyLength || k >= m.count {
		return false
	}
	return m.validCache[m.slot(k)]
}

// windowIsValid computes whether the transition at logical position k
// has a full window that does not span a terminal
func (m *Memory) windowIsValid(k int) bool {
	if k < m.historyLength {
		return false
	}
	for j := k - m.historyLength; j < k; j++ {
		if m.terminalCache[m.slot(j)] {
			return false
		}
	}
	return true
}

// fillState writes the state ending at logical position last into dst
func (m *Memory) fillState(dst []float64, last int) {
	first := last - m.historyLength + 1
	for j := 0; j < m.historyLength; j++ {
		index := m.slot(first + j)
		frame := m.frameCache[index*m.frameSize : (index+1)*m.frameSize]
		out := dst[j*m.frameSize : (j+1)*m.frameSize]
		for p, v := range frame {
			out[p] = float64(v) / 255.0
		}
	}
}

// slot converts a logical position (0 is the oldest retained record)
// into an index into the caches
func (m *Memory) slot(k int) int {
	if !m.isFull {
		return k
	}
	return (m.currentInUsePos + k) % m.maxCapacity
}
