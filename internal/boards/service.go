package boards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a stable <operation>.<reason> code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "boards.service.new"
	opEnsureBoard = "boards.ensure"
	opGetBySlug   = "boards.get_by_slug"
	opListBoards  = "boards.list"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// IDProvider issues identifiers for newly created boards.
type IDProvider interface {
	NewID() (string, error)
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service resolves and creates boards by slug.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Ensure resolves a board by its normalized slug, creating it on first
// visit. When a non-empty name differing from the stored one is supplied,
// the stored name is patched. Ensure is idempotent and is invoked by every
// board page load.
func (s *Service) Ensure(ctx context.Context, rawSlug, name string) (Board, error) {
	slug, err := Normalize(rawSlug)
	if err != nil {
		return Board{}, err
	}

	var existing Board
	err = s.db.WithContext(ctx).Where("slug = ?", slug).Take(&existing).Error
	if err == nil {
		label := strings.TrimSpace(name)
		if label == "" || label == existing.Name {
			return existing, nil
		}
		if err := s.db.WithContext(ctx).Model(&Board{}).
			Where("id = ?", existing.ID).
			Update("name", label).Error; err != nil {
			s.logError(opEnsureBoard, "name_update_failed", err, zap.String("slug", slug))
			return Board{}, newServiceError(opEnsureBoard, "name_update_failed", err)
		}
		var updated Board
		if err := s.db.WithContext(ctx).Where("id = ?", existing.ID).Take(&updated).Error; err != nil {
			s.logError(opEnsureBoard, "board_load_failed", err, zap.String("slug", slug))
			return Board{}, newServiceError(opEnsureBoard, "board_load_failed", err)
		}
		return updated, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opEnsureBoard, "board_select_failed", err, zap.String("slug", slug))
		return Board{}, newServiceError(opEnsureBoard, "board_select_failed", err)
	}

	boardID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opEnsureBoard, "id_generation_failed", err, zap.String("slug", slug))
		return Board{}, newServiceError(opEnsureBoard, "id_generation_failed", err)
	}

	label := strings.TrimSpace(name)
	if label == "" {
		label = FallbackName(slug)
	}
	created := Board{
		ID:             boardID,
		Slug:           slug,
		Name:           label,
		CreatedAtMilli: s.clock().UTC().UnixMilli(),
	}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		s.logError(opEnsureBoard, "board_insert_failed", err, zap.String("slug", slug))
		return Board{}, newServiceError(opEnsureBoard, "board_insert_failed", err)
	}

	var board Board
	if err := s.db.WithContext(ctx).Where("id = ?", boardID).Take(&board).Error; err != nil {
		s.logError(opEnsureBoard, "board_load_failed", err, zap.String("slug", slug))
		return Board{}, newServiceError(opEnsureBoard, "board_load_failed", err)
	}

	s.logger.Info("board created",
		zap.String("board_id", board.ID),
		zap.String("slug", board.Slug))
	return board, nil
}

// GetBySlug resolves a board by slug. Absence is reported via found=false,
// not an error, matching the lookup semantics of the board page loader.
func (s *Service) GetBySlug(ctx context.Context, rawSlug string) (Board, bool, error) {
	slug, err := Normalize(rawSlug)
	if err != nil {
		return Board{}, false, nil
	}

	var board Board
	err = s.db.WithContext(ctx).Where("slug = ?", slug).Take(&board).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Board{}, false, nil
	}
	if err != nil {
		s.logError(opGetBySlug, "query_failed", err, zap.String("slug", slug))
		return Board{}, false, newServiceError(opGetBySlug, "query_failed", err)
	}
	return board, true, nil
}

// List returns every board, newest first.
func (s *Service) List(ctx context.Context) ([]Board, error) {
	var result []Board
	if err := s.db.WithContext(ctx).
		Order("created_at_ms DESC").
		Find(&result).Error; err != nil {
		s.logError(opListBoards, "query_failed", err)
		return nil, newServiceError(opListBoards, "query_failed", err)
	}
	return result, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("boards service error", attrs...)
}
