package client

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/instructa/constructa/internal/cursors"
	"github.com/instructa/constructa/internal/throttle"
)

// Grid is the coordinate quantization step. Pointer positions snap to
// this grid before leaving the client, trading sub-pixel precision for
// fewer distinct writes and broadcasts.
const Grid = 4

// DefaultInterval bounds the pulse rate to roughly two animation frames.
const DefaultInterval = 32 * time.Millisecond

var errMissingPulse = errors.New("client: pulse function is required")

// Quantize snaps a coordinate to the nearest multiple of the grid step.
// Half-grid values round toward positive infinity, so -6 snaps to -4.
func Quantize(v float64) int64 {
	return int64(math.Floor(v/Grid+0.5)) * Grid
}

// CursorPublisherConfig binds a session identity to a pulse sink.
type CursorPublisherConfig struct {
	BoardID   string
	SessionID string
	UserID    string
	Name      string
	Color     string
	Interval  time.Duration
	Pulse     func(cursors.PulseRequest)

	// Clock and Schedule are passed through to the throttle for tests.
	Clock    func() time.Time
	Schedule func(delay time.Duration, fire func()) (cancel func())
}

// CursorPublisher turns raw pointer movement into a bounded-rate stream
// of quantized cursor pulses. Quantization happens here, before the
// throttle, so the store only ever sees grid-aligned coordinates.
type CursorPublisher struct {
	mu        sync.Mutex
	boardID   string
	sessionID string
	userID    string
	name      string
	color     string
	publisher *throttle.Publisher[position]
}

type position struct {
	x int64
	y int64
}

func NewCursorPublisher(cfg CursorPublisherConfig) (*CursorPublisher, error) {
	if cfg.Pulse == nil {
		return nil, errMissingPulse
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	cp := &CursorPublisher{
		boardID:   cfg.BoardID,
		sessionID: cfg.SessionID,
		userID:    cfg.UserID,
		name:      cfg.Name,
		color:     cfg.Color,
	}
	publisher, err := throttle.NewPublisher(throttle.Config[position]{
		Interval: interval,
		Clock:    cfg.Clock,
		Schedule: cfg.Schedule,
		Send: func(pos position) {
			cp.mu.Lock()
			req := cursors.PulseRequest{
				BoardID:   cp.boardID,
				SessionID: cp.sessionID,
				UserID:    cp.userID,
				Name:      cp.name,
				Color:     cp.color,
				X:         pos.x,
				Y:         pos.y,
			}
			cp.mu.Unlock()
			cfg.Pulse(req)
		},
	})
	if err != nil {
		return nil, err
	}
	cp.publisher = publisher
	return cp, nil
}

// Move offers a raw pointer position. Most calls coalesce; the latest
// position before any pause is guaranteed to reach the store.
func (cp *CursorPublisher) Move(x, y float64) {
	cp.publisher.Publish(position{x: Quantize(x), y: Quantize(y)})
}

// Rename updates the display name carried by subsequent pulses, e.g. when
// the user edits their name mid-session.
func (cp *CursorPublisher) Rename(name string) {
	cp.mu.Lock()
	cp.name = name
	cp.mu.Unlock()
}

// Stop drops any queued position. Called on navigation away from a board;
// no further pulses are issued and the row simply goes stale server-side.
func (cp *CursorPublisher) Stop() {
	cp.publisher.Stop()
}
