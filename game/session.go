package game

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"
)

// TickInterval is the fixed simulation step, 60 Hz.
const TickInterval = time.Second / 60

// Mode distinguishes how a session was created. Local sessions drive
// both paddles from one connection; remote sessions give each seat its
// own connection; tournament sessions additionally report results back
// to the bracket.
type Mode string

const (
	ModeLocal      Mode = "local"
	ModeRemote     Mode = "remote"
	ModeTournament Mode = "tournament"
)

// ErrSessionFull is returned by Bind once both seats are taken.
var ErrSessionFull = errors.New("session full")

// ErrSessionFinished is returned when starting a finished session.
var ErrSessionFinished = errors.New("session finished")

// sendBuffer bounds the per-seat outbound queue. A slow consumer drops
// frames instead of delaying the tick.
const sendBuffer = 64

// Seat is one bound connection's slot in a session. Outbound frames
// are queued on Send by the tick loop and drained by the connection's
// write pump. Send is never closed — teardown is signalled on Done so
// that a racing producer can never hit a closed channel.
type Seat struct {
	Side     Side
	PlayerID int64
	Send     chan []byte
	done     chan struct{}
	once     sync.Once
}

// Close signals the write pump to stop, exactly once.
func (st *Seat) Close() {
	st.once.Do(func() { close(st.done) })
}

// Done is closed when the seat has been released.
func (st *Seat) Done() <-chan struct{} {
	return st.done
}

// FinishFunc is invoked (on its own goroutine) when a session's match
// ends with a final score.
type FinishFunc func(s *Session, snap Snapshot)

// Session is one match's complete runtime state: the simulation, the
// bound seats and the tick schedule. All mutable state is guarded by
// mu; the registry owns the session's lifetime.
type Session struct {
	ID           string
	Mode         Mode
	TournamentID string

	mu         sync.Mutex
	engine     *Engine
	seats      map[Side]*Seat
	players    map[Side]int64 // sticky: survives unbind, used for result persistence
	stop       chan struct{}  // non-nil iff the tick loop is running
	lastActive time.Time
	onFinish   FinishFunc
}

func newSession(id string, mode Mode, tournamentID string, onFinish FinishFunc) *Session {
	return &Session{
		ID:           id,
		Mode:         mode,
		TournamentID: tournamentID,
		engine:       NewEngine(time.Now().UnixNano()),
		seats:        make(map[Side]*Seat),
		players:      make(map[Side]int64),
		lastActive:   time.Now(),
		onFinish:     onFinish,
	}
}

// Bind assigns the next free seat: first connection gets left, second
// right, a third is rejected. With both seats present a waiting
// session auto-starts.
func (s *Session) Bind(playerID int64) (*Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var side Side
	switch {
	case s.seats[SideLeft] == nil:
		side = SideLeft
	case s.seats[SideRight] == nil:
		side = SideRight
	default:
		return nil, ErrSessionFull
	}

	seat := &Seat{
		Side:     side,
		PlayerID: playerID,
		Send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
	s.seats[side] = seat
	if playerID != 0 {
		s.players[side] = playerID
	}
	s.lastActive = time.Now()

	if len(s.seats) == 2 && s.engine.Status() == StatusWaiting {
		if err := s.startLocked(); err != nil {
			log.Printf("session %s: auto-start failed: %v", s.ID, err)
		}
	}
	return seat, nil
}

// Unbind removes a seat. When the last seat goes away on an unfinished
// session the tick schedule is stopped — a session must never keep a
// ticker with zero live connections.
func (s *Session) Unbind(seat *Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seats[seat.Side] == seat {
		delete(s.seats, seat.Side)
	}
	seat.Close()
	s.lastActive = time.Now()

	if len(s.seats) == 0 && s.engine.Status() == StatusPlaying {
		s.pauseLocked()
	}
}

// Start begins or resumes the tick schedule.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

// Stop pauses the tick schedule; the session stays resumable.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseLocked()
}

func (s *Session) startLocked() error {
	switch s.engine.Status() {
	case StatusFinished:
		return ErrSessionFinished
	case StatusPlaying:
		return nil
	}
	s.engine.SetStatus(StatusPlaying)
	s.stop = make(chan struct{})
	go s.run(s.stop)
	return nil
}

func (s *Session) pauseLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	if s.engine.Status() == StatusPlaying {
		s.engine.SetStatus(StatusPaused)
	}
}

// run is the per-session tick loop. Ticks are strictly sequential: all
// tick work happens inline before the next timer fire is consumed.
func (s *Session) run(stop chan struct{}) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.tick() {
				return
			}
		}
	}
}

// tick advances the simulation once and broadcasts the snapshot.
// Returns true when the match just finished and the loop should exit.
func (s *Session) tick() bool {
	s.mu.Lock()
	s.engine.Advance()
	snap := s.engine.Snapshot()
	if snap.Status == StatusFinished {
		// The loop exits on our signal; drop the handle so a later
		// Stop doesn't close it twice.
		s.stop = nil
		s.lastActive = time.Now()
		s.broadcastLocked(MsgGameOver, snap)
		finish := s.onFinish
		s.mu.Unlock()
		if finish != nil {
			go finish(s, snap)
		}
		return true
	}
	s.broadcastLocked(MsgState, snap)
	s.mu.Unlock()
	return false
}

// broadcastLocked queues a frame on every seat, fire and forget. Full
// queues drop the frame rather than blocking the tick.
func (s *Session) broadcastLocked(msgType string, snap Snapshot) {
	frame, err := json.Marshal(ServerMessage{Type: msgType, State: &snap})
	if err != nil {
		log.Printf("session %s: marshal snapshot: %v", s.ID, err)
		return
	}
	for _, seat := range s.seats {
		select {
		case seat.Send <- frame:
		default:
		}
	}
}

// ApplyIntent sets a paddle's movement intent.
func (s *Session) ApplyIntent(side Side, dir Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.ApplyIntent(side, dir)
	s.lastActive = time.Now()
}

// ApplySettings forwards match settings to the engine.
func (s *Session) ApplySettings(cfg Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ApplySettings(cfg)
}

// Snapshot returns the current simulation state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot()
}

// Status returns the session's lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Status()
}

// SeatCount reports how many connections are currently bound.
func (s *Session) SeatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seats)
}

// Players returns the last known player ids for both seats. ok is
// false until both seats have been occupied by identified players.
func (s *Session) Players() (left, right int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	left = s.players[SideLeft]
	right = s.players[SideRight]
	return left, right, left != 0 && right != 0
}

// IdleSince reports the last bind/unbind/input/finish activity.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// teardown stops the tick loop and closes every seat. Called by the
// registry under its own lock on Delete.
func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	for side, seat := range s.seats {
		seat.Close()
		delete(s.seats, side)
	}
}
