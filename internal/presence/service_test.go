package presence

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

type movableClock struct {
	now time.Time
}

func (c *movableClock) Now() time.Time {
	return c.now
}

func (c *movableClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, ids []string) (*Service, *movableClock) {
	t.Helper()
	dsn := fmt.Sprintf("file:presence-%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&Session{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	clock := &movableClock{now: time.UnixMilli(1700000000000).UTC()}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: &staticIDGenerator{ids: ids},
		Tokens: NewTokenIssuer(TokenIssuerConfig{
			SigningSecret: []byte("test-signing-secret"),
			Clock:         clock.Now,
		}),
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service, clock
}

func heartbeat(t *testing.T, service *Service, roomID, userID, sessionID string, interval time.Duration) HeartbeatResult {
	t.Helper()
	result, err := service.Heartbeat(context.Background(), roomID, userID, sessionID, interval)
	if err != nil {
		t.Fatalf("unexpected heartbeat error: %v", err)
	}
	return result
}

func TestHeartbeatReportsUserOnline(t *testing.T) {
	service, _ := newTestService(t, []string{"ps-1"})

	result := heartbeat(t, service, "room-1", "user-1", "session-1", 10*time.Second)

	roster, err := service.List(context.Background(), result.RoomToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roster) != 1 {
		t.Fatalf("expected one roster entry, got %d", len(roster))
	}
	if roster[0].UserID != "user-1" || !roster[0].Online {
		t.Fatalf("unexpected roster entry: %+v", roster[0])
	}
}

func TestLapsedHeartbeatFlipsOffline(t *testing.T) {
	service, clock := newTestService(t, []string{"ps-1"})

	result := heartbeat(t, service, "room-1", "user-1", "session-1", 10*time.Second)

	// Inside the 2.5x grace window the session stays online.
	clock.Advance(20 * time.Second)
	roster, err := service.List(context.Background(), result.RoomToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !roster[0].Online {
		t.Fatalf("expected user online inside grace window: %+v", roster[0])
	}

	clock.Advance(10 * time.Second)
	roster, err = service.List(context.Background(), result.RoomToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if roster[0].Online {
		t.Fatalf("expected user offline after grace window: %+v", roster[0])
	}
	if roster[0].LastDisconnectedMilli == 0 {
		t.Fatal("expected a last-disconnected timestamp for lapsed session")
	}
}

func TestDisconnectFlipsOfflineImmediately(t *testing.T) {
	service, _ := newTestService(t, []string{"ps-1"})

	result := heartbeat(t, service, "room-1", "user-1", "session-1", 10*time.Second)
	if err := service.Disconnect(context.Background(), result.SessionToken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	roster, err := service.List(context.Background(), result.RoomToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if roster[0].Online {
		t.Fatalf("expected user offline after disconnect: %+v", roster[0])
	}
	if roster[0].LastDisconnectedMilli != 1700000000000 {
		t.Fatalf("unexpected last-disconnected %d", roster[0].LastDisconnectedMilli)
	}
}

func TestHeartbeatRevivesDisconnectedSession(t *testing.T) {
	service, clock := newTestService(t, []string{"ps-1"})

	result := heartbeat(t, service, "room-1", "user-1", "session-1", 10*time.Second)
	if err := service.Disconnect(context.Background(), result.SessionToken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(time.Second)
	heartbeat(t, service, "room-1", "user-1", "session-1", 10*time.Second)

	roster, err := service.List(context.Background(), result.RoomToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !roster[0].Online {
		t.Fatalf("expected user back online after fresh heartbeat: %+v", roster[0])
	}
}

func TestUserOnlineWhileAnySessionIs(t *testing.T) {
	service, clock := newTestService(t, []string{"ps-1", "ps-2"})

	heartbeat(t, service, "room-1", "user-1", "tab-a", 10*time.Second)
	clock.Advance(30 * time.Second) // tab-a lapses
	result := heartbeat(t, service, "room-1", "user-1", "tab-b", 10*time.Second)

	roster, err := service.List(context.Background(), result.RoomToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roster) != 1 {
		t.Fatalf("expected one aggregated entry, got %d", len(roster))
	}
	if !roster[0].Online {
		t.Fatalf("expected user online via second tab: %+v", roster[0])
	}
}

func TestListRejectsForeignToken(t *testing.T) {
	service, _ := newTestService(t, []string{"ps-1"})
	result := heartbeat(t, service, "room-1", "user-1", "session-1", 10*time.Second)

	// A session token is not acceptable where a room token is required.
	if _, err := service.List(context.Background(), result.SessionToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if err := service.Disconnect(context.Background(), result.RoomToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestHeartbeatValidatesInput(t *testing.T) {
	service, _ := newTestService(t, []string{"ps-1"})

	if _, err := service.Heartbeat(context.Background(), "", "user-1", "session-1", time.Second); !errors.Is(err, ErrInvalidHeartbeat) {
		t.Fatalf("expected ErrInvalidHeartbeat for empty room id, got %v", err)
	}
	if _, err := service.Heartbeat(context.Background(), "room-1", "user-1", "session-1", 0); !errors.Is(err, ErrInvalidHeartbeat) {
		t.Fatalf("expected ErrInvalidHeartbeat for non-positive interval, got %v", err)
	}
}
