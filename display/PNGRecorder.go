package display

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

// DefaultScale is the factor screens are enlarged by when rendered
const DefaultScale = 2.0

// PNGRecorder renders every N-th screen, enlarged and with the score
// drawn on top, into a directory of PNG images
type PNGRecorder struct {
	dir   string
	every int
	scale float64

	scoreColour color.Color
	rendered    int
}

// NewPNGRecorder returns a PNGRecorder saving every n-th screen into
// dir, enlarged by scale. A non-positive scale uses DefaultScale.
func NewPNGRecorder(dir string, n int, scale float64) (*PNGRecorder, error) {
	if n < 1 {
		return nil, fmt.Errorf("newPNGRecorder: must render every n > 0 "+
			"steps, have n = %v", n)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "newPNGRecorder: could not create "+
			"directory")
	}
	if scale <= 0 {
		scale = DefaultScale
	}

	return &PNGRecorder{
		dir:         dir,
		every:       n,
		scale:       scale,
		scoreColour: color.White,
	}, nil
}

// Filename returns the name of the image of a step
func (p *PNGRecorder) Filename(step int) string {
	return filepath.Join(p.dir, fmt.Sprintf("frame-%08d.png", step))
}

// Rendered returns the number of images saved so far
func (p *PNGRecorder) Rendered() int {
	return p.rendered
}

// Observe implements the Observer interface
func (p *PNGRecorder) Observe(o Observation) error {
	if o.Step.Number%p.every != 0 || o.Screen == nil {
		return nil
	}

	bounds := o.Screen.Bounds()
	w := int(float64(bounds.Dx()) * p.scale)
	h := int(float64(bounds.Dy()) * p.scale)

	dc := gg.NewContext(w, h)
	dc.Push()
	dc.Scale(p.scale, p.scale)
	dc.DrawImage(o.Screen, 0, 0)
	dc.Pop()

	dc.SetColor(p.scoreColour)
	dc.DrawStringAnchored(fmt.Sprintf("%d : %d", o.ScoreB, o.ScoreA),
		float64(w)/2, float64(h)-8, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("step %d  episode %d", o.Step.Number,
		o.Step.Episode), 4, 8, 0, 0.5)

	if err := dc.SavePNG(p.Filename(o.Step.Number)); err != nil {
		return errors.Wrapf(err, "observe: could not save step %v",
			o.Step.Number)
	}
	p.rendered++
	return nil
}
