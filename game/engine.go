package game

import (
	"fmt"
	"log"
	"math/rand"
)

// Playfield geometry and defaults. Coordinates grow right/down; both
// paddles and the ball are axis-aligned rectangles.
const (
	FieldWidth   = 800.0
	FieldHeight  = 600.0
	PaddleWidth  = 10.0
	PaddleHeight = 100.0
	BallSize     = 10.0

	defaultBallSpeed   = 5.0
	defaultPaddleSpeed = 6.0
	defaultWinScore    = 5
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// Side identifies one of the two seats.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Direction is a paddle movement intent.
type Direction string

const (
	DirUp   Direction = "up"
	DirDown Direction = "down"
	DirStop Direction = "stop"
)

// Settings are the tunable match parameters. Only accepted while the
// session is still waiting.
type Settings struct {
	BallSpeed   float64 `json:"ball_speed"`
	PaddleSpeed float64 `json:"paddle_speed"`
	WinScore    int     `json:"win_score"`
}

// Validate rejects non-positive values.
func (s Settings) Validate() error {
	if s.BallSpeed <= 0 {
		return fmt.Errorf("ball_speed must be positive, got %v", s.BallSpeed)
	}
	if s.PaddleSpeed <= 0 {
		return fmt.Errorf("paddle_speed must be positive, got %v", s.PaddleSpeed)
	}
	if s.WinScore <= 0 {
		return fmt.Errorf("win_score must be positive, got %d", s.WinScore)
	}
	return nil
}

// BallState is the ball's position and velocity.
type BallState struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// PaddleState is one paddle's position and current intent.
type PaddleState struct {
	Y      float64   `json:"y"`
	Intent Direction `json:"intent"`
}

// Snapshot is an immutable projection of the simulation, safe to
// serialize and hand to connections without further locking.
type Snapshot struct {
	Ball       BallState   `json:"ball"`
	Left       PaddleState `json:"left"`
	Right      PaddleState `json:"right"`
	ScoreLeft  int         `json:"score_left"`
	ScoreRight int         `json:"score_right"`
	Status     Status      `json:"status"`
}

type paddle struct {
	y      float64
	intent Direction
}

// Engine is a deterministic fixed-step Pong simulation for one match.
// It is not safe for concurrent use; the owning Session serializes all
// access, and ticks never overlap.
//
// Collision checks are discrete, on each tick's post-move position. A
// ball configured fast enough can tunnel through a paddle in a single
// step. Known limitation, kept as is.
type Engine struct {
	ball     BallState
	left     paddle
	right    paddle
	scoreL   int
	scoreR   int
	status   Status
	settings Settings
	rng      *rand.Rand
}

// NewEngine returns an engine in waiting state with default settings.
func NewEngine(seed int64) *Engine {
	e := &Engine{
		status: StatusWaiting,
		settings: Settings{
			BallSpeed:   defaultBallSpeed,
			PaddleSpeed: defaultPaddleSpeed,
			WinScore:    defaultWinScore,
		},
		rng: rand.New(rand.NewSource(seed)),
	}
	e.left.y = (FieldHeight - PaddleHeight) / 2
	e.right.y = e.left.y
	e.left.intent = DirStop
	e.right.intent = DirStop
	e.serve(1)
	return e
}

// ApplySettings replaces the match parameters. Accepted only while the
// session is waiting; otherwise it is a logged no-op. Invalid values
// are rejected regardless of state.
func (e *Engine) ApplySettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if e.status != StatusWaiting {
		log.Printf("settings ignored: simulation already %s", e.status)
		return nil
	}
	e.settings = s
	e.serve(1)
	return nil
}

// ApplyIntent sets a paddle's movement intent. Input after game over
// is ignored.
func (e *Engine) ApplyIntent(side Side, dir Direction) {
	if e.status == StatusFinished {
		return
	}
	switch side {
	case SideLeft:
		e.left.intent = dir
	case SideRight:
		e.right.intent = dir
	}
}

// SetStatus is used by the session to drive waiting/playing/paused
// transitions. Finished is terminal: a finished simulation never
// restarts, callers create a new session instead.
func (e *Engine) SetStatus(s Status) {
	if e.status == StatusFinished {
		return
	}
	e.status = s
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status { return e.status }

// Advance runs one fixed simulation step. No-op unless playing.
func (e *Engine) Advance() {
	if e.status != StatusPlaying {
		return
	}

	e.ball.X += e.ball.VX
	e.ball.Y += e.ball.VY

	e.movePaddle(&e.left)
	e.movePaddle(&e.right)

	// Top/bottom wall bounce.
	if e.ball.Y <= 0 {
		e.ball.Y = 0
		e.ball.VY = -e.ball.VY
	} else if e.ball.Y+BallSize >= FieldHeight {
		e.ball.Y = FieldHeight - BallSize
		e.ball.VY = -e.ball.VY
	}

	// Paddle contact: leading edge within paddle depth and vertical
	// overlap with the paddle span. Post-move check only.
	if e.ball.VX < 0 && e.ball.X <= PaddleWidth && e.ball.X >= 0 && e.overlaps(e.left) {
		e.ball.X = PaddleWidth
		e.ball.VX = -e.ball.VX
		e.ball.VY = e.spin(e.left)
	} else if e.ball.VX > 0 && e.ball.X+BallSize >= FieldWidth-PaddleWidth && e.ball.X+BallSize <= FieldWidth && e.overlaps(e.right) {
		e.ball.X = FieldWidth - PaddleWidth - BallSize
		e.ball.VX = -e.ball.VX
		e.ball.VY = e.spin(e.right)
	}

	// Scoring: crossing a side boundary awards the opposite player and
	// re-serves from center toward the scored-on side.
	if e.ball.X+BallSize < 0 {
		e.scoreR++
		e.serve(1)
	} else if e.ball.X > FieldWidth {
		e.scoreL++
		e.serve(-1)
	}

	if e.scoreL >= e.settings.WinScore || e.scoreR >= e.settings.WinScore {
		e.status = StatusFinished
	}
}

// Snapshot returns the current state as an immutable value.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Ball:       e.ball,
		Left:       PaddleState{Y: e.left.y, Intent: e.left.intent},
		Right:      PaddleState{Y: e.right.y, Intent: e.right.intent},
		ScoreLeft:  e.scoreL,
		ScoreRight: e.scoreR,
		Status:     e.status,
	}
}

func (e *Engine) movePaddle(p *paddle) {
	switch p.intent {
	case DirUp:
		p.y -= e.settings.PaddleSpeed
	case DirDown:
		p.y += e.settings.PaddleSpeed
	}
	if p.y < 0 {
		p.y = 0
	}
	if p.y > FieldHeight-PaddleHeight {
		p.y = FieldHeight - PaddleHeight
	}
}

func (e *Engine) overlaps(p paddle) bool {
	return e.ball.Y+BallSize >= p.y && e.ball.Y <= p.y+PaddleHeight
}

// spin imparts vertical velocity proportional to the hit offset from
// the paddle center.
func (e *Engine) spin(p paddle) float64 {
	ballCenter := e.ball.Y + BallSize/2
	paddleCenter := p.y + PaddleHeight/2
	offset := (ballCenter - paddleCenter) / (PaddleHeight / 2)
	return offset * e.settings.BallSpeed
}

// serve resets the ball to center court, moving horizontally toward
// dir (+1 right, -1 left) with a randomized vertical component.
func (e *Engine) serve(dir float64) {
	e.ball.X = (FieldWidth - BallSize) / 2
	e.ball.Y = (FieldHeight - BallSize) / 2
	e.ball.VX = dir * e.settings.BallSpeed
	e.ball.VY = (e.rng.Float64() - 0.5) * e.settings.BallSpeed
}
