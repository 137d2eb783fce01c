package pong

import (
	"fmt"
	"math"
)

// Palette indices of the screen colours
const (
	Background uint8 = 34
	ColourA    uint8 = 200
	ColourB    uint8 = 56
	Foreground uint8 = 14
)

// 3x5 bitmaps of the score digits, one row per byte, most significant
// of the three low bits leftmost
var digits = [10][5]uint8{
	{7, 5, 5, 5, 7},
	{2, 6, 2, 2, 7},
	{7, 1, 7, 4, 7},
	{7, 1, 7, 1, 7},
	{5, 5, 7, 1, 1},
	{7, 4, 7, 1, 7},
	{7, 4, 7, 5, 7},
	{7, 1, 1, 1, 1},
	{7, 5, 7, 5, 7},
	{7, 5, 7, 1, 7},
}

// Score digits are drawn at this many pixels per bitmap pixel
const (
	digitScaleX = 4
	digitScaleY = 3
	scoreTop    = 2
)

// FillObservation implements the environment.DualFrameSource
// interface. The screen holds the scores above the playfield, the
// walls, both paddles, and the ball if it is on screen.
func (p *Pong) FillObservation(obs []uint8) error {
	if len(obs) != ScreenWidth*ScreenHeight {
		return fmt.Errorf("fillObservation: observation must hold %v values, "+
			"have %v", ScreenWidth*ScreenHeight, len(obs))
	}

	for i := range obs {
		obs[i] = Background
	}
	fillRect(obs, 0, PlayTop-10, ScreenWidth, 10, Foreground)
	fillRect(obs, 0, PlayBottom, ScreenWidth, ScreenHeight-PlayBottom,
		Foreground)

	drawScore(obs, p.scoreB, 16, ColourB)
	drawScore(obs, p.scoreA, 96, ColourA)

	a, b := p.Paddles()
	fillRect(obs, PaddleAX, int(math.Round(a))-PaddleHeight/2, PaddleWidth,
		PaddleHeight, ColourA)
	fillRect(obs, PaddleBX, int(math.Round(b))-PaddleHeight/2, PaddleWidth,
		PaddleHeight, ColourB)

	x, y := p.Ball()
	fillRect(obs, int(math.Round(x))-BallWidth/2,
		int(math.Round(y))-BallHeight/2, BallWidth, BallHeight, Foreground)

	return nil
}

// fillRect fills the part of a rectangle which lies on the screen
func fillRect(obs []uint8, x, y, w, h int, colour uint8) {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, ScreenWidth), min(y+h, ScreenHeight)
	for row := y0; row < y1; row++ {
		for col := x0; col < x1; col++ {
			obs[row*ScreenWidth+col] = colour
		}
	}
}

// drawScore draws a two digit score with its left edge at x
func drawScore(obs []uint8, score, x int, colour uint8) {
	score %= 100
	if score >= 10 {
		drawDigit(obs, score/10, x, colour)
	}
	drawDigit(obs, score%10, x+4*digitScaleX, colour)
}

func drawDigit(obs []uint8, digit, x int, colour uint8) {
	for row, bits := range digits[digit] {
		for col := 0; col < 3; col++ {
			if bits&(1<<(2-col)) == 0 {
				continue
			}
			fillRect(obs, x+col*digitScaleX, scoreTop+row*digitScaleY,
				digitScaleX, digitScaleY, colour)
		}
	}
}
