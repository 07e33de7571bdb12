package cursors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultStaleWindow hides cursor rows that have not pulsed recently.
// 1500ms covers several missed throttle windows before a peer's cursor
// disappears.
const DefaultStaleWindow = 1500 * time.Millisecond

var (
	errMissingDatabase   = errors.New("cursors: database handle is required")
	errMissingIDProvider = errors.New("cursors: id provider is required")
)

// IDProvider issues identifiers for first-pulse cursor rows.
type IDProvider interface {
	NewID() (string, error)
}

type ServiceConfig struct {
	Database    *gorm.DB
	Clock       func() time.Time
	IDProvider  IDProvider
	StaleWindow time.Duration
	Logger      *zap.Logger
}

// Service maintains one live cursor row per (board, session) pair.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	idProvider  IDProvider
	staleWindow time.Duration
	logger      *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	staleWindow := cfg.StaleWindow
	if staleWindow <= 0 {
		staleWindow = DefaultStaleWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:          cfg.Database,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		staleWindow: staleWindow,
		logger:      logger,
	}, nil
}

// StaleWindow reports the configured read-time staleness cutoff.
func (s *Service) StaleWindow() time.Duration {
	return s.staleWindow
}

// PulseRequest carries one cursor position update. X and Y arrive already
// quantized by the publisher.
type PulseRequest struct {
	BoardID   string
	SessionID string
	UserID    string
	Name      string
	Color     string
	X         int64
	Y         int64
}

// Pulse upserts the (board, session) cursor row: the first pulse from a
// session inserts it, every later pulse overwrites position, identity
// fields and updatedAt in place. Name and color may change mid-session
// when the user edits their display name.
func (s *Service) Pulse(ctx context.Context, req PulseRequest) error {
	now := s.clock().UTC().UnixMilli()

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Cursor
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("board_id = ? AND session_id = ?", req.BoardID, req.SessionID).
			Take(&existing).Error
		if err == nil {
			return tx.Model(&Cursor{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"x":             req.X,
					"y":             req.Y,
					"updated_at_ms": now,
					"name":          req.Name,
					"color":         req.Color,
					"user_id":       req.UserID,
				}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		cursorID, err := s.idProvider.NewID()
		if err != nil {
			return err
		}
		return tx.Create(&Cursor{
			ID:             cursorID,
			BoardID:        req.BoardID,
			SessionID:      req.SessionID,
			UserID:         req.UserID,
			Name:           req.Name,
			Color:          req.Color,
			X:              req.X,
			Y:              req.Y,
			UpdatedAtMilli: now,
		}).Error
	})
	if txErr != nil {
		s.logger.Error("cursor pulse failed",
			zap.String("board_id", req.BoardID),
			zap.String("session_id", req.SessionID),
			zap.Error(txErr))
		return fmt.Errorf("cursors: pulse failed: %w", txErr)
	}
	return nil
}

// ListByBoard returns the board's cursors whose updatedAt falls inside the
// staleness window. Stale rows are hidden, not deleted; the reaper owns
// deletion. No ordering is guaranteed.
func (s *Service) ListByBoard(ctx context.Context, boardID string) ([]Cursor, error) {
	cutoff := s.clock().UTC().UnixMilli() - s.staleWindow.Milliseconds()

	var result []Cursor
	if err := s.db.WithContext(ctx).
		Where("board_id = ? AND updated_at_ms >= ?", boardID, cutoff).
		Find(&result).Error; err != nil {
		s.logger.Error("cursor list failed", zap.String("board_id", boardID), zap.Error(err))
		return nil, fmt.Errorf("cursors: list failed: %w", err)
	}
	return result, nil
}
