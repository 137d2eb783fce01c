// Package pong implements a two-player Pong simulator producing
// Atari-sized, palette-indexed screens.
//
// The ball and paddles are Box2D bodies. Box2D integrates their motion
// and reports contacts; the bounces themselves are computed by the
// simulator so that the ball keeps a constant speed, as in the arcade
// game. Player A controls the right paddle and player B the left one.
package pong

import (
	"fmt"
	"math"

	"github.com/ByteArena/box2d"
	"github.com/samuelfneumann/pongdqn/environment"
	"golang.org/x/exp/rand"
)

const (
	// Screen dimensions in pixels
	ScreenWidth  = 160
	ScreenHeight = 210

	FPS float64 = 60

	// Pixels per Box2D meter
	Scale float64 = 10

	// Vertical extent of the playfield, in pixels
	PlayTop    = 34
	PlayBottom = 194

	PaddleWidth  = 4
	PaddleHeight = 16
	BallWidth    = 2
	BallHeight   = 4

	// Left edges of the paddles
	PaddleAX = 140
	PaddleBX = 16

	// Maximum angle of the ball to the horizontal after a paddle hit
	MaxBounceAngle = math.Pi / 3
)

// Body types of Box2D
const (
	staticBody    uint8 = 0
	kinematicBody uint8 = 1
	dynamicBody   uint8 = 2
)

// motion is the vertical direction a paddle moves in
type motion int

const (
	stay motion = iota
	up
	down
)

// Config describes a game of Pong. Speeds are in pixels per frame.
type Config struct {
	PointsToWin int

	// Frames the ball waits in the centre before it is served. Either
	// player may serve earlier by firing.
	ServeDelay int

	BallSpeed    float64
	MaxBallSpeed float64
	SpeedUp      float64 // Speed gained on each paddle hit
	PaddleSpeed  float64
}

// DefaultConfig returns the configuration of a standard game to 21
func DefaultConfig() Config {
	return Config{
		PointsToWin:  21,
		ServeDelay:   30,
		BallSpeed:    2.0,
		MaxBallSpeed: 4.0,
		SpeedUp:      0.1,
		PaddleSpeed:  3.0,
	}
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.PointsToWin < 1 {
		return fmt.Errorf("validate: points to win must be positive, have %v",
			c.PointsToWin)
	}
	if c.ServeDelay < 0 {
		return fmt.Errorf("validate: serve delay must be non-negative, "+
			"have %v", c.ServeDelay)
	}
	if c.BallSpeed <= 0 || c.MaxBallSpeed < c.BallSpeed {
		return fmt.Errorf("validate: ball speed must be in (0, %v], have %v",
			c.MaxBallSpeed, c.BallSpeed)
	}
	// Contacts are only detected if the ball cannot pass through a
	// paddle within a single frame
	if c.MaxBallSpeed > PaddleWidth+BallWidth-1 {
		return fmt.Errorf("validate: maximum ball speed must not exceed %v, "+
			"have %v", PaddleWidth+BallWidth-1, c.MaxBallSpeed)
	}
	if c.SpeedUp < 0 {
		return fmt.Errorf("validate: speed up must be non-negative, have %v",
			c.SpeedUp)
	}
	if c.PaddleSpeed <= 0 {
		return fmt.Errorf("validate: paddle speed must be positive, have %v",
			c.PaddleSpeed)
	}
	return nil
}

// Pong implements a two-player game of Pong as an
// environment.DualFrameSource. Rewards are +1 when player A scores a
// point and -1 when player B does. An episode ends once either player
// reaches Config.PointsToWin points.
type Pong struct {
	config Config
	rng    *rand.Rand

	world    box2d.B2World
	ball     *box2d.B2Body
	paddleA  *box2d.B2Body
	paddleB  *box2d.B2Body
	topWall  *box2d.B2Body
	lowWall  *box2d.B2Body
	contacts *contactDetector

	speed      float64 // Current ball speed
	serveTimer int     // Frames until the ball is served, -1 once in play
	scoreA     int
	scoreB     int
	gameOver   bool
	frame      int
}

// New returns a new game of Pong, ready to be played
func New(c Config, seed uint64) (*Pong, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	p := &Pong{
		config: c,
		rng:    rand.New(rand.NewSource(seed)),
	}
	p.world = box2d.MakeB2World(box2d.MakeB2Vec2(0, 0))
	p.contacts = &contactDetector{env: p}
	p.world.SetContactListener(p.contacts)

	p.topWall = p.addBox(staticBody, ScreenWidth/2, PlayTop-5,
		ScreenWidth, 10)
	p.lowWall = p.addBox(staticBody, ScreenWidth/2, PlayBottom+5,
		ScreenWidth, 10)
	p.paddleA = p.addBox(kinematicBody, PaddleAX+PaddleWidth/2,
		(PlayTop+PlayBottom)/2, PaddleWidth, PaddleHeight)
	p.paddleB = p.addBox(kinematicBody, PaddleBX+PaddleWidth/2,
		(PlayTop+PlayBottom)/2, PaddleWidth, PaddleHeight)
	p.ball = p.addBox(dynamicBody, ScreenWidth/2, (PlayTop+PlayBottom)/2,
		BallWidth, BallHeight)

	if err := p.Reset(); err != nil {
		return nil, err
	}
	return p, nil
}

// addBox adds a box centred at (x, y) with the given size, all in
// pixels. The ball is a sensor, so Box2D reports its contacts without
// resolving them.
func (p *Pong) addBox(bodyType uint8, x, y, w, h float64) *box2d.B2Body {
	def := box2d.MakeB2BodyDef()
	def.Type = bodyType
	def.Position = toWorld(x, y)
	def.FixedRotation = true
	def.AllowSleep = false
	def.Bullet = bodyType == dynamicBody
	body := p.world.CreateBody(&def)

	shape := box2d.NewB2PolygonShape()
	shape.SetAsBox(w/2/Scale, h/2/Scale)

	fix := box2d.MakeB2FixtureDef()
	fix.Shape = shape
	fix.Density = 1.0
	fix.Friction = 0.0
	fix.Restitution = 1.0
	fix.IsSensor = bodyType == dynamicBody
	body.CreateFixtureFromDef(&fix)

	return body
}

func toWorld(x, y float64) box2d.B2Vec2 {
	return box2d.MakeB2Vec2(x/Scale, y/Scale)
}

func toPixels(v box2d.B2Vec2) (float64, float64) {
	return v.X * Scale, v.Y * Scale
}

// velocity converts a speed in pixels per frame into meters per second
func velocity(pixelsPerFrame float64) float64 {
	return pixelsPerFrame * FPS / Scale
}

// Reset starts a new game
func (p *Pong) Reset() error {
	p.scoreA, p.scoreB = 0, 0
	p.gameOver = false
	p.frame = 0

	centre := float64(PlayTop+PlayBottom) / 2
	p.paddleA.SetTransform(toWorld(PaddleAX+PaddleWidth/2, centre), 0)
	p.paddleB.SetTransform(toWorld(PaddleBX+PaddleWidth/2, centre), 0)
	p.paddleA.SetLinearVelocity(box2d.MakeB2Vec2(0, 0))
	p.paddleB.SetLinearVelocity(box2d.MakeB2Vec2(0, 0))
	p.resetBall()
	return nil
}

// resetBall places the ball in the centre to wait for the next serve
func (p *Pong) resetBall() {
	p.ball.SetTransform(toWorld(ScreenWidth/2, float64(PlayTop+PlayBottom)/2),
		0)
	p.ball.SetLinearVelocity(box2d.MakeB2Vec2(0, 0))
	p.speed = p.config.BallSpeed
	p.serveTimer = p.config.ServeDelay
	p.contacts.clear()
}

// serve launches the ball towards a random side at a random angle
func (p *Pong) serve() {
	angle := (p.rng.Float64()*2 - 1) * MaxBounceAngle / 2
	direction := 1.0
	if p.rng.Intn(2) == 0 {
		direction = -1.0
	}
	p.setBallVelocity(direction, angle)
	p.serveTimer = -1
}

// setBallVelocity sets the ball moving at its current speed, towards
// the right if direction is positive, at angle to the horizontal
func (p *Pong) setBallVelocity(direction, angle float64) {
	vx := direction * p.speed * math.Cos(angle)
	vy := p.speed * math.Sin(angle)
	p.ball.SetLinearVelocity(box2d.MakeB2Vec2(velocity(vx), velocity(vy)))
}

// Act2 implements the environment.DualFrameSource interface. Player A
// acts with environment.PlayerAActions and player B with
// environment.PlayerBActions.
func (p *Pong) Act2(a, b int) (bool, float64, error) {
	if p.gameOver {
		return true, 0, fmt.Errorf("act2: game is over, reset first")
	}
	motionA, fireA, err := playerA(a)
	if err != nil {
		return false, 0, err
	}
	motionB, fireB, err := playerB(b)
	if err != nil {
		return false, 0, err
	}

	p.movePaddle(p.paddleA, motionA)
	p.movePaddle(p.paddleB, motionB)

	if p.serveTimer >= 0 {
		if fireA || fireB || p.serveTimer == 0 {
			p.serve()
		} else {
			p.serveTimer--
		}
	}

	p.contacts.clear()
	p.world.Step(1.0/FPS, 8, 3)
	p.frame++

	p.clampPaddle(p.paddleA)
	p.clampPaddle(p.paddleB)
	p.bounce()

	reward := p.score()
	return p.gameOver, reward, nil
}

// playerA returns the paddle motion and whether player A fires
func playerA(action int) (motion, bool, error) {
	switch action {
	case environment.Noop:
		return stay, false, nil
	case environment.Fire:
		return stay, true, nil
	case environment.Right:
		return up, false, nil
	case environment.Left:
		return down, false, nil
	default:
		return stay, false, fmt.Errorf("act2: illegal action %v for player A",
			action)
	}
}

// playerB returns the paddle motion and whether player B fires
func playerB(action int) (motion, bool, error) {
	switch action {
	case environment.PlayerBRight:
		return stay, false, nil
	case environment.PlayerBUpRight:
		return stay, true, nil
	case environment.PlayerBUp:
		return up, false, nil
	case environment.PlayerBDown:
		return down, false, nil
	default:
		return stay, false, fmt.Errorf("act2: illegal action %v for player B",
			action)
	}
}

func (p *Pong) movePaddle(paddle *box2d.B2Body, m motion) {
	var vy float64
	switch m {
	case up:
		vy = -velocity(p.config.PaddleSpeed)
	case down:
		vy = velocity(p.config.PaddleSpeed)
	}
	paddle.SetLinearVelocity(box2d.MakeB2Vec2(0, vy))
}

// clampPaddle keeps a paddle inside the playfield
func (p *Pong) clampPaddle(paddle *box2d.B2Body) {
	x, y := toPixels(paddle.GetPosition())
	low := float64(PlayTop) + PaddleHeight/2
	high := float64(PlayBottom) - PaddleHeight/2
	if y < low || y > high {
		y = math.Max(low, math.Min(high, y))
		paddle.SetTransform(toWorld(x, y), 0)
		paddle.SetLinearVelocity(box2d.MakeB2Vec2(0, 0))
	}
}

// bounce reflects the ball off the walls and paddles it touched during
// the last frame
func (p *Pong) bounce() {
	if p.serveTimer >= 0 {
		return
	}
	x, y := toPixels(p.ball.GetPosition())
	v := p.ball.GetLinearVelocity()

	for _, paddle := range []*box2d.B2Body{p.paddleA, p.paddleB} {
		if !p.contacts.touched(paddle) {
			continue
		}
		direction := -1.0 // Away from player A, to the left
		if paddle == p.paddleB {
			direction = 1.0
		}
		if math.Signbit(v.X) == math.Signbit(direction) && v.X != 0 {
			// Already moving away, the contact is with the paddle's
			// back or top
			continue
		}

		_, py := toPixels(paddle.GetPosition())
		offset := (y - py) / (PaddleHeight/2 + BallHeight/2)
		offset = math.Max(-1, math.Min(1, offset))
		p.speed = math.Min(p.config.MaxBallSpeed, p.speed+p.config.SpeedUp)
		p.setBallVelocity(direction, offset*MaxBounceAngle)
		v = p.ball.GetLinearVelocity()
	}

	top := float64(PlayTop) + BallHeight/2
	bottom := float64(PlayBottom) - BallHeight/2
	switch {
	case p.contacts.touched(p.topWall) || y < top:
		p.ball.SetTransform(toWorld(x, math.Max(y, top)), 0)
		p.ball.SetLinearVelocity(box2d.MakeB2Vec2(v.X, math.Abs(v.Y)))
	case p.contacts.touched(p.lowWall) || y > bottom:
		p.ball.SetTransform(toWorld(x, math.Min(y, bottom)), 0)
		p.ball.SetLinearVelocity(box2d.MakeB2Vec2(v.X, -math.Abs(v.Y)))
	}
}

// score awards a point once the ball leaves the screen and returns
// the reward of player A
func (p *Pong) score() float64 {
	x, _ := toPixels(p.ball.GetPosition())
	var reward float64
	switch {
	case x < 0:
		p.scoreA++
		reward = 1
	case x > ScreenWidth:
		p.scoreB++
		reward = -1
	default:
		return 0
	}

	if p.scoreA >= p.config.PointsToWin || p.scoreB >= p.config.PointsToWin {
		p.gameOver = true
	}
	p.resetBall()
	return reward
}

// IsTerminal implements the environment.DualFrameSource interface
func (p *Pong) IsTerminal() bool {
	return p.gameOver
}

// ScreenDimensions implements the environment.DualFrameSource interface
func (p *Pong) ScreenDimensions() (int, int) {
	return ScreenWidth, ScreenHeight
}

// Score returns the points of player A and player B
func (p *Pong) Score() (int, int) {
	return p.scoreA, p.scoreB
}

// Frame returns the number of frames played since the last reset
func (p *Pong) Frame() int {
	return p.frame
}

// Ball returns the centre of the ball in pixels
func (p *Pong) Ball() (float64, float64) {
	return toPixels(p.ball.GetPosition())
}

// Paddles returns the vertical centres of the paddles of player A and
// player B in pixels
func (p *Pong) Paddles() (float64, float64) {
	_, a := toPixels(p.paddleA.GetPosition())
	_, b := toPixels(p.paddleB.GetPosition())
	return a, b
}

// contactDetector records the bodies the ball touched during a frame
type contactDetector struct {
	env     *Pong
	touches []*box2d.B2Body
}

func (c *contactDetector) clear() {
	c.touches = c.touches[:0]
}

func (c *contactDetector) touched(body *box2d.B2Body) bool {
	for _, t := range c.touches {
		if t == body {
			return true
		}
	}
	return false
}

func (c *contactDetector) BeginContact(contact box2d.B2ContactInterface) {
	a := contact.GetFixtureA().GetBody()
	b := contact.GetFixtureB().GetBody()
	switch c.env.ball {
	case a:
		c.touches = append(c.touches, b)
	case b:
		c.touches = append(c.touches, a)
	}
}

func (c *contactDetector) EndContact(contact box2d.B2ContactInterface) {}

func (c *contactDetector) PreSolve(contact box2d.B2ContactInterface,
	oldManifold box2d.B2Manifold) {
}

func (c *contactDetector) PostSolve(contact box2d.B2ContactInterface,
	impulse *box2d.B2ContactImpulse) {
}
