package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/instructa/constructa/internal/realtime"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	streamWriteWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	streamPongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than streamPongWait.
	streamPingPeriod = (streamPongWait * 9) / 10
	// Clients never send payloads on this socket, only control frames.
	streamReadLimit = 512
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The REST surface allows any origin; the stream matches it.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	snapshotTypeCursors = "cursors"
	snapshotTypeNotes   = "notes"
)

type cursorsSnapshot struct {
	Type    string          `json:"type"`
	BoardID string          `json:"board_id"`
	Cursors []cursorPayload `json:"cursors"`
}

type notesSnapshot struct {
	Type    string        `json:"type"`
	BoardID string        `json:"board_id"`
	Notes   []notePayload `json:"notes"`
}

// handleBoardStream is the reactive query layer's delivery path: the
// client subscribes once and receives a fresh snapshot of the board's
// cursors or notes whenever the underlying rows change. Snapshots are
// recomputed per event, so a subscriber that misses an event is repaired
// by the next one.
func (h *httpHandler) handleBoardStream(c *gin.Context) {
	boardID := c.Param("board")

	conn, err := streamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("stream upgrade failed", zap.String("board_id", boardID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	cursorEvents, cursorCleanup := h.realtime.Subscribe(ctx, realtime.CursorTopic(boardID))
	defer cursorCleanup()
	noteEvents, noteCleanup := h.realtime.Subscribe(ctx, realtime.NoteTopic(boardID))
	defer noteCleanup()

	// Reader goroutine: the client sends nothing but control frames, so
	// its only job is pong bookkeeping and noticing the close.
	go func() {
		conn.SetReadLimit(streamReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	if err := h.writeCursorsSnapshot(ctx, conn, boardID); err != nil {
		return
	}
	if err := h.writeNotesSnapshot(ctx, conn, boardID); err != nil {
		return
	}

	pingTicker := time.NewTicker(streamPingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-cursorEvents:
			if !ok {
				return
			}
			drainEvents(cursorEvents)
			if err := h.writeCursorsSnapshot(ctx, conn, boardID); err != nil {
				return
			}
		case _, ok := <-noteEvents:
			if !ok {
				return
			}
			drainEvents(noteEvents)
			if err := h.writeNotesSnapshot(ctx, conn, boardID); err != nil {
				return
			}
		case <-pingTicker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainEvents coalesces a burst of change events into one snapshot write.
func drainEvents(events <-chan realtime.Event) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

func (h *httpHandler) writeCursorsSnapshot(ctx context.Context, conn *websocket.Conn, boardID string) error {
	listed, err := h.cursors.ListByBoard(ctx, boardID)
	if err != nil {
		h.logger.Error("stream cursor query failed", zap.String("board_id", boardID), zap.Error(err))
		return err
	}
	payload := make([]cursorPayload, 0, len(listed))
	for _, cursor := range listed {
		payload = append(payload, cursorToPayload(cursor))
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(cursorsSnapshot{
		Type:    snapshotTypeCursors,
		BoardID: boardID,
		Cursors: payload,
	})
}

func (h *httpHandler) writeNotesSnapshot(ctx context.Context, conn *websocket.Conn, boardID string) error {
	listed, err := h.notes.List(ctx, boardID)
	if err != nil {
		h.logger.Error("stream note query failed", zap.String("board_id", boardID), zap.Error(err))
		return err
	}
	payload := make([]notePayload, 0, len(listed))
	for _, note := range listed {
		payload = append(payload, noteToPayload(note))
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(notesSnapshot{
		Type:    snapshotTypeNotes,
		BoardID: boardID,
		Notes:   payload,
	})
}
