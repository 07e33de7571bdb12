package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// heartbeatGraceFactor stretches the client-supplied interval before a
// silent session counts as offline, so one missed heartbeat does not flap
// the roster.
const heartbeatGraceFactor = 2.5

var (
	errMissingDatabase    = errors.New("presence: database handle is required")
	errMissingIDProvider  = errors.New("presence: id provider is required")
	errMissingTokenIssuer = errors.New("presence: token issuer is required")

	// ErrInvalidToken covers malformed, expired, or wrong-audience room
	// and session tokens.
	ErrInvalidToken = errors.New("presence: invalid token")

	// ErrInvalidHeartbeat marks a heartbeat rejected for bad input before
	// any storage write.
	ErrInvalidHeartbeat = errors.New("presence: invalid heartbeat")
)

// IDProvider issues identifiers for presence session rows.
type IDProvider interface {
	NewID() (string, error)
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Tokens     *TokenIssuer
	Logger     *zap.Logger
}

// Service tracks which users are online in a room, independent of cursor
// position. It is keyed by room and user directly; boards do not own
// roster entries.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	tokens     *TokenIssuer
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.Tokens == nil {
		return nil, errMissingTokenIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		tokens:     cfg.Tokens,
		logger:     logger,
	}, nil
}

// HeartbeatResult carries the tokens a client needs for subsequent roster
// reads and for disconnecting.
type HeartbeatResult struct {
	RoomToken    string
	SessionToken string
}

// Heartbeat records that a session is alive in a room. The first beat
// inserts the session row; later beats refresh the deadline in place and
// clear any prior disconnect.
func (s *Service) Heartbeat(ctx context.Context, roomID, userID, sessionID string, interval time.Duration) (HeartbeatResult, error) {
	if roomID == "" || userID == "" || sessionID == "" {
		return HeartbeatResult{}, fmt.Errorf("%w: room, user and session identifiers are required", ErrInvalidHeartbeat)
	}
	if interval <= 0 {
		return HeartbeatResult{}, fmt.Errorf("%w: interval must be positive", ErrInvalidHeartbeat)
	}

	now := s.clock().UTC().UnixMilli()
	var rowID string

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Session
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ? AND session_id = ?", roomID, sessionID).
			Take(&existing).Error
		if err == nil {
			rowID = existing.ID
			return tx.Model(&Session{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"user_id":           userID,
					"interval_ms":       interval.Milliseconds(),
					"last_heartbeat_ms": now,
					"disconnected":      false,
				}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		generated, err := s.idProvider.NewID()
		if err != nil {
			return err
		}
		rowID = generated
		return tx.Create(&Session{
			ID:                 rowID,
			RoomID:             roomID,
			SessionID:          sessionID,
			UserID:             userID,
			IntervalMillis:     interval.Milliseconds(),
			LastHeartbeatMilli: now,
		}).Error
	})
	if txErr != nil {
		s.logError("presence heartbeat failed", txErr, roomID, sessionID)
		return HeartbeatResult{}, fmt.Errorf("presence: heartbeat failed: %w", txErr)
	}

	roomToken, err := s.tokens.IssueRoomToken(roomID)
	if err != nil {
		return HeartbeatResult{}, fmt.Errorf("presence: room token issue failed: %w", err)
	}
	sessionToken, err := s.tokens.IssueSessionToken(rowID)
	if err != nil {
		return HeartbeatResult{}, fmt.Errorf("presence: session token issue failed: %w", err)
	}
	return HeartbeatResult{RoomToken: roomToken, SessionToken: sessionToken}, nil
}

// List aggregates the room's sessions into one roster entry per user,
// sorted by user id. Offline entries report when the user was last seen
// disconnecting (explicitly or by heartbeat lapse).
func (s *Service) List(ctx context.Context, roomToken string) ([]RosterEntry, error) {
	roomID, err := s.tokens.ValidateRoomToken(roomToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var sessions []Session
	if err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Find(&sessions).Error; err != nil {
		s.logError("presence list failed", err, roomID, "")
		return nil, fmt.Errorf("presence: list failed: %w", err)
	}

	now := s.clock().UTC().UnixMilli()
	byUser := make(map[string]*RosterEntry)
	for _, session := range sessions {
		entry, ok := byUser[session.UserID]
		if !ok {
			entry = &RosterEntry{UserID: session.UserID}
			byUser[session.UserID] = entry
		}
		if sessionOnline(session, now) {
			entry.Online = true
			continue
		}
		if lastSeen := sessionLastDisconnected(session); lastSeen > entry.LastDisconnectedMilli {
			entry.LastDisconnectedMilli = lastSeen
		}
	}

	roster := make([]RosterEntry, 0, len(byUser))
	for _, entry := range byUser {
		if entry.Online {
			entry.LastDisconnectedMilli = 0
		}
		roster = append(roster, *entry)
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].UserID < roster[j].UserID })
	return roster, nil
}

// Disconnect flips the token's session offline immediately instead of
// waiting for its heartbeat to lapse.
func (s *Service) Disconnect(ctx context.Context, sessionToken string) error {
	rowID, err := s.tokens.ValidateSessionToken(sessionToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	now := s.clock().UTC().UnixMilli()
	if err := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", rowID).
		Updates(map[string]interface{}{
			"disconnected":         true,
			"last_disconnected_ms": now,
		}).Error; err != nil {
		s.logError("presence disconnect failed", err, "", rowID)
		return fmt.Errorf("presence: disconnect failed: %w", err)
	}
	return nil
}

func sessionOnline(session Session, nowMillis int64) bool {
	if session.Disconnected {
		return false
	}
	deadline := session.LastHeartbeatMilli + int64(float64(session.IntervalMillis)*heartbeatGraceFactor)
	return nowMillis < deadline
}

func sessionLastDisconnected(session Session) int64 {
	if session.Disconnected {
		return session.LastDisconnectedMilli
	}
	// Lapsed without an explicit disconnect: last seen when the grace
	// window closed.
	return session.LastHeartbeatMilli + int64(float64(session.IntervalMillis)*heartbeatGraceFactor)
}

func (s *Service) logError(message string, err error, roomID, sessionRef string) {
	fields := []zap.Field{zap.Error(err)}
	if roomID != "" {
		fields = append(fields, zap.String("room_id", roomID))
	}
	if sessionRef != "" {
		fields = append(fields, zap.String("session", sessionRef))
	}
	s.logger.Error(message, fields...)
}
