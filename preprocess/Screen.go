package preprocess

import (
	"fmt"
	"image"

	ts "github.com/samuelfneumann/pongdqn/timestep"
	"golang.org/x/image/draw"
)

// Screen pools consecutive RGB screens and scales them down into the
// frames seen by the agent.
//
// Each screen the frame source produces must be painted exactly once,
// in order. Grab then returns the element-wise maximum of the last two
// painted screens, which removes the flicker of objects drawn on
// alternate frames.
type Screen struct {
	width, height int
	outW, outH    int

	// Buffers of the two most recently painted screens, current holds
	// the latest
	current  *image.RGBA
	previous *image.RGBA
	painted  int

	pooled *image.RGBA
	gray   *image.Gray
	scaled *image.Gray
	scaler draw.Scaler
}

// NewScreen returns a Screen pooling screens of size (width, height)
// and producing frames of size (outW, outH)
func NewScreen(width, height, outW, outH int) (*Screen, error) {
	if width <= 0 || height <= 0 || outW <= 0 || outH <= 0 {
		return nil, fmt.Errorf("newScreen: dimensions must be positive, have "+
			"(%v, %v) -> (%v, %v)", width, height, outW, outH)
	}
	bounds := image.Rect(0, 0, width, height)
	return &Screen{
		width:    width,
		height:   height,
		outW:     outW,
		outH:     outH,
		current:  image.NewRGBA(bounds),
		previous: image.NewRGBA(bounds),
		pooled:   image.NewRGBA(bounds),
		gray:     image.NewGray(bounds),
		scaled:   image.NewGray(image.Rect(0, 0, outW, outH)),
		scaler:   draw.BiLinear,
	}, nil
}

// OutputDimensions returns the width and height of scaled frames
func (s *Screen) OutputDimensions() (int, int) {
	return s.outW, s.outH
}

// Paint records the latest screen
func (s *Screen) Paint(rgb *image.RGBA) error {
	if rgb.Bounds().Dx() != s.width || rgb.Bounds().Dy() != s.height {
		return fmt.Errorf("paint: expected a (%v, %v) screen, have %v",
			s.width, s.height, rgb.Bounds().Size())
	}
	s.previous, s.current = s.current, s.previous
	draw.Draw(s.current, s.current.Bounds(), rgb, rgb.Bounds().Min, draw.Src)
	s.painted++
	return nil
}

// PaintIndexed converts a palette-indexed screen to RGB and paints it
func (s *Screen) PaintIndexed(obs []uint8) error {
	rgb, err := ToRGB(obs, s.width, s.height)
	if err != nil {
		return fmt.Errorf("paintIndexed: %v", err)
	}
	return s.Paint(rgb)
}

// Reset forgets all painted screens
func (s *Screen) Reset() {
	s.painted = 0
}

// Latest returns the most recently painted screen. The returned image
// is owned by the Screen and changes with the next Paint.
func (s *Screen) Latest() *image.RGBA {
	return s.current
}

// Grab returns the element-wise maximum of the last two painted
// screens, or the only painted screen if there has been just one. The
// returned image is owned by the Screen and changes with the next
// Grab.
func (s *Screen) Grab() (*image.RGBA, error) {
	switch s.painted {
	case 0:
		return nil, fmt.Errorf("grab: no screen has been painted")
	case 1:
		copy(s.pooled.Pix, s.current.Pix)
		return s.pooled, nil
	}

	for i, v := range s.current.Pix {
		s.pooled.Pix[i] = max(v, s.previous.Pix[i])
	}
	return s.pooled, nil
}

// Scale converts an RGB screen to luminance and resizes it to the
// output dimensions with bilinear interpolation
func (s *Screen) Scale(rgb image.Image) ts.Frame {
	gray := s.gray
	if rgb.Bounds() != gray.Bounds() {
		gray = image.NewGray(rgb.Bounds())
	}
	draw.Draw(gray, gray.Bounds(), rgb, rgb.Bounds().Min, draw.Src)
	s.scaler.Scale(s.scaled, s.scaled.Bounds(), gray, gray.Bounds(),
		draw.Src, nil)

	frame := ts.NewFrame(s.outW, s.outH)
	for y := 0; y < s.outH; y++ {
		row := s.scaled.Pix[y*s.scaled.Stride : y*s.scaled.Stride+s.outW]
		copy(frame.Pixels[y*s.outW:], row)
	}
	return frame
}

// Frame pools the last two painted screens and scales the result
func (s *Screen) Frame() (ts.Frame, error) {
	pooled, err := s.Grab()
	if err != nil {
		return ts.Frame{}, err
	}
	return s.Scale(pooled), nil
}
