package timestep

import "fmt"

// Frame is a single preprocessed, single-channel screen. Pixels holds
// Width*Height luminance values in row-major order.
type Frame struct {
	Width  int
	Height int
	Pixels []uint8
}

// NewFrame returns a zeroed Frame of the given size
func NewFrame(width, height int) Frame {
	return Frame{
		Width:  width,
		Height: height,
		Pixels: make([]uint8, width*height),
	}
}

// Len returns the number of pixels in the frame
func (f Frame) Len() int {
	return f.Width * f.Height
}

// Clone returns a deep copy of the frame
func (f Frame) Clone() Frame {
	pixels := make([]uint8, len(f.Pixels))
	copy(pixels, f.Pixels)
	return Frame{Width: f.Width, Height: f.Height, Pixels: pixels}
}

// Validate checks that the pixel buffer matches the frame dimensions
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("validate: frame dimensions must be positive, "+
			"have (%v, %v)", f.Width, f.Height)
	}
	if len(f.Pixels) != f.Len() {
		return fmt.Errorf("validate: invalid number of pixels \n\twant(%v)"+
			"\n\thave(%v)", f.Len(), len(f.Pixels))
	}
	return nil
}

// Normalized writes the frame into dst scaled into [0, 1]. The dst
// slice must hold at least Len() values.
func (f Frame) Normalized(dst []float64) {
	for i, p := range f.Pixels {
		dst[i] = float64(p) / 255.0
	}
}
