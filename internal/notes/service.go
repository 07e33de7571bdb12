package notes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNoteNotFound indicates an upsert referenced a note id that no
	// longer exists.
	ErrNoteNotFound = errors.New("notes: note not found")

	errMissingDatabase   = errors.New("notes: database handle is required")
	errMissingIDProvider = errors.New("notes: id provider is required")
)

// IDProvider issues identifiers for newly created notes.
type IDProvider interface {
	NewID() (string, error)
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service stores board notes with full-replace upsert semantics.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
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
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// UpsertRequest carries the complete positional and visual state of a
// note. There is no field-level merge: callers always supply everything.
type UpsertRequest struct {
	NoteID  string // empty inserts a new note
	BoardID string
	X       float64
	Y       float64
	Width   float64
	Height  float64
	Text    string
	Color   string
	Z       int64
}

// Upsert fully replaces an existing note's state or inserts a new one when
// no note id is supplied. The write refreshes updatedAt in either case.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (Note, error) {
	now := s.clock().UTC().UnixMilli()

	if req.NoteID != "" {
		var existing Note
		err := s.db.WithContext(ctx).Where("id = ?", req.NoteID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Note{}, fmt.Errorf("%w: %s", ErrNoteNotFound, req.NoteID)
		}
		if err != nil {
			return Note{}, fmt.Errorf("notes: upsert lookup failed: %w", err)
		}

		updated := Note{
			ID:             existing.ID,
			BoardID:        existing.BoardID,
			X:              req.X,
			Y:              req.Y,
			Width:          req.Width,
			Height:         req.Height,
			Text:           req.Text,
			Color:          req.Color,
			Z:              req.Z,
			UpdatedAtMilli: now,
		}
		if err := s.db.WithContext(ctx).Save(&updated).Error; err != nil {
			s.logger.Error("note update failed", zap.String("note_id", req.NoteID), zap.Error(err))
			return Note{}, fmt.Errorf("notes: update failed: %w", err)
		}
		return updated, nil
	}

	noteID, err := s.idProvider.NewID()
	if err != nil {
		return Note{}, fmt.Errorf("notes: id generation failed: %w", err)
	}
	created := Note{
		ID:             noteID,
		BoardID:        req.BoardID,
		X:              req.X,
		Y:              req.Y,
		Width:          req.Width,
		Height:         req.Height,
		Text:           req.Text,
		Color:          req.Color,
		Z:              req.Z,
		UpdatedAtMilli: now,
	}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		s.logger.Error("note insert failed", zap.String("board_id", req.BoardID), zap.Error(err))
		return Note{}, fmt.Errorf("notes: insert failed: %w", err)
	}
	return created, nil
}

// List returns every note on a board. Order is not part of the contract;
// clients paint by z.
func (s *Service) List(ctx context.Context, boardID string) ([]Note, error) {
	var result []Note
	if err := s.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Find(&result).Error; err != nil {
		s.logger.Error("note list failed", zap.String("board_id", boardID), zap.Error(err))
		return nil, fmt.Errorf("notes: list failed: %w", err)
	}
	return result, nil
}

// Remove hard-deletes a note and returns the id of the board that owned
// it, so callers can notify that board's subscribers. Removing an
// already-deleted note is not an error; the returned board id is empty.
func (s *Service) Remove(ctx context.Context, noteID string) (string, error) {
	var existing Note
	err := s.db.WithContext(ctx).Where("id = ?", noteID).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("notes: delete lookup failed: %w", err)
	}

	if err := s.db.WithContext(ctx).Where("id = ?", noteID).Delete(&Note{}).Error; err != nil {
		s.logger.Error("note delete failed", zap.String("note_id", noteID), zap.Error(err))
		return "", fmt.Errorf("notes: delete failed: %w", err)
	}
	return existing.BoardID, nil
}
