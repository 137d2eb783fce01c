package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPalette(t *testing.T) {
	assert.Len(t, Palette, 256)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, RGB(0))
	assert.Equal(t, color.RGBA{0x90, 0x48, 0x11, 255}, RGB(34))
	assert.Equal(t, color.RGBA{0x5c, 0xba, 0x5c, 255}, RGB(200))
	assert.Equal(t, color.RGBA{0xd5, 0x82, 0x4a, 255}, RGB(56))
	assert.Equal(t, color.RGBA{0xfc, 0xe0, 0x70, 255}, RGB(254))

	for i := 1; i < 256; i += 2 {
		assert.Equal(t, RGB(uint8(i-1)), RGB(uint8(i)))
	}
}

func TestToRGB(t *testing.T) {
	_, err := ToRGB(make([]uint8, 5), 2, 3)
	assert.Error(t, err)

	img, err := ToRGB([]uint8{0, 14, 34, 35, 200, 57}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, color.RGBA{0xec, 0xec, 0xec, 255}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{0x90, 0x48, 0x11, 255}, img.RGBAAt(2, 0))
	assert.Equal(t, img.RGBAAt(2, 0), img.RGBAAt(0, 1))
	assert.Equal(t, color.RGBA{0xd5, 0x82, 0x4a, 255}, img.RGBAAt(2, 1))
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestGrab(t *testing.T) {
	_, err := NewScreen(0, 2, 2, 2)
	assert.Error(t, err)

	s, err := NewScreen(4, 4, 2, 2)
	require.NoError(t, err)

	_, err = s.Grab()
	assert.Error(t, err)
	assert.Error(t, s.Paint(solid(3, 4, color.RGBA{})))

	first := solid(4, 4, color.RGBA{10, 200, 30, 255})
	require.NoError(t, s.Paint(first))
	pooled, err := s.Grab()
	require.NoError(t, err)
	assert.Equal(t, first.Pix, pooled.Pix)

	second := solid(4, 4, color.RGBA{50, 20, 30, 255})
	second.SetRGBA(0, 0, color.RGBA{255, 255, 255, 255})
	require.NoError(t, s.Paint(second))
	pooled, err = s.Grab()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, pooled.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{50, 200, 30, 255}, pooled.RGBAAt(3, 3))

	// Only the last two screens are pooled
	require.NoError(t, s.Paint(solid(4, 4, color.RGBA{0, 0, 0, 255})))
	pooled, err = s.Grab()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, pooled.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{50, 20, 30, 255}, pooled.RGBAAt(3, 3))

	s.Reset()
	_, err = s.Grab()
	assert.Error(t, err)
}

func TestScale(t *testing.T) {
	s, err := NewScreen(160, 210, 84, 84)
	require.NoError(t, err)
	w, h := s.OutputDimensions()
	assert.Equal(t, 84, w)
	assert.Equal(t, 84, h)

	frame := s.Scale(solid(160, 210, color.RGBA{0xec, 0xec, 0xec, 255}))
	require.NoError(t, frame.Validate())
	assert.Equal(t, 84, frame.Width)
	assert.Equal(t, 84, frame.Height)
	for _, p := range frame.Pixels {
		assert.InDelta(t, 0xec, int(p), 1)
	}

	// Luminance weights green the most
	green := s.Scale(solid(160, 210, color.RGBA{0, 255, 0, 255}))
	blue := s.Scale(solid(160, 210, color.RGBA{0, 0, 255, 255}))
	assert.Greater(t, green.Pixels[0], blue.Pixels[0])

	obs := make([]uint8, 160*210)
	require.NoError(t, s.PaintIndexed(obs))
	require.NoError(t, s.PaintIndexed(obs))
	frame, err = s.Frame()
	require.NoError(t, err)
	assert.Equal(t, make([]uint8, 84*84), frame.Pixels)

	assert.Error(t, s.PaintIndexed(obs[1:]))
}

func TestIndex(t *testing.T) {
	for i := 0; i < 256; i += 2 {
		c := RGB(uint8(i))
		assert.Equal(t, uint8(i), Index(c.R, c.G, c.B))
	}
	assert.Equal(t, uint8(14), Index(0xeb, 0xed, 0xec))
}
