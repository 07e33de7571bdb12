package boards

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

func newTestService(t *testing.T, ids []string) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:boards-%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&Board{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.UnixMilli(1700000000000).UTC() },
		IDProvider: &staticIDGenerator{ids: ids},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service, db
}

func TestEnsureIsIdempotent(t *testing.T) {
	service, _ := newTestService(t, []string{"board-1", "board-2"})

	first, err := service.Ensure(context.Background(), "team-x", "Team X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.Ensure(context.Background(), "team-x", "Team X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same board id, got %s and %s", first.ID, second.ID)
	}
	if second.Name != "Team X" {
		t.Fatalf("unexpected name %q", second.Name)
	}
}

func TestEnsurePatchesNameWithoutChangingID(t *testing.T) {
	service, _ := newTestService(t, []string{"board-1"})

	created, err := service.Ensure(context.Background(), "team-x", "Team X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	renamed, err := service.Ensure(context.Background(), "team-x", "Team Y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if renamed.ID != created.ID {
		t.Fatalf("expected id %s, got %s", created.ID, renamed.ID)
	}
	if renamed.Name != "Team Y" {
		t.Fatalf("expected renamed board, got %q", renamed.Name)
	}
}

func TestEnsureNormalizesSlugAndDerivesFallbackName(t *testing.T) {
	service, _ := newTestService(t, []string{"board-1"})

	board, err := service.Ensure(context.Background(), "  Sprint 42  Log!! ", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if board.Slug != "sprint-42-log" {
		t.Fatalf("unexpected slug %q", board.Slug)
	}
	if board.Name != "Sprint 42 Log" {
		t.Fatalf("unexpected fallback name %q", board.Name)
	}
}

func TestEnsureRejectsEmptySlug(t *testing.T) {
	service, _ := newTestService(t, []string{"board-1"})

	_, err := service.Ensure(context.Background(), "!!!", "Anything")
	if !errors.Is(err, ErrInvalidSlug) {
		t.Fatalf("expected ErrInvalidSlug, got %v", err)
	}
}

func TestGetBySlugReportsAbsence(t *testing.T) {
	service, _ := newTestService(t, []string{"board-1"})

	if _, found, err := service.GetBySlug(context.Background(), "missing"); err != nil || found {
		t.Fatalf("expected absent board, found=%v err=%v", found, err)
	}

	created, err := service.Ensure(context.Background(), "team-x", "Team X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	board, found, err := service.GetBySlug(context.Background(), "Team X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || board.ID != created.ID {
		t.Fatalf("expected to resolve %s via normalized slug, found=%v", created.ID, found)
	}
}

func TestListReturnsNewestFirst(t *testing.T) {
	service, db := newTestService(t, []string{"board-1", "board-2"})

	if _, err := service.Ensure(context.Background(), "older", "Older"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.Ensure(context.Background(), "newer", "Newer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The fixed clock stamps both identically; skew one to order them.
	if err := db.Model(&Board{}).Where("slug = ?", "newer").
		Update("created_at_ms", 1700000001000).Error; err != nil {
		t.Fatalf("failed to adjust timestamp: %v", err)
	}

	listed, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 boards, got %d", len(listed))
	}
	if listed[0].Slug != "newer" || listed[1].Slug != "older" {
		t.Fatalf("unexpected order: %s, %s", listed[0].Slug, listed[1].Slug)
	}
}
