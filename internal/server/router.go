package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/instructa/constructa/internal/boards"
	"github.com/instructa/constructa/internal/cursors"
	"github.com/instructa/constructa/internal/notes"
	"github.com/instructa/constructa/internal/presence"
	"github.com/instructa/constructa/internal/realtime"
	"go.uber.org/zap"
)

var (
	errMissingBoardsService   = errors.New("boards service dependency required")
	errMissingNotesService    = errors.New("notes service dependency required")
	errMissingCursorsService  = errors.New("cursors service dependency required")
	errMissingPresenceService = errors.New("presence service dependency required")
	errMissingDispatcher      = errors.New("realtime dispatcher dependency required")
)

type Dependencies struct {
	Boards   *boards.Service
	Notes    *notes.Service
	Cursors  *cursors.Service
	Presence *presence.Service
	Realtime *realtime.Dispatcher
	Logger   *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Boards == nil {
		return nil, errMissingBoardsService
	}
	if deps.Notes == nil {
		return nil, errMissingNotesService
	}
	if deps.Cursors == nil {
		return nil, errMissingCursorsService
	}
	if deps.Presence == nil {
		return nil, errMissingPresenceService
	}
	if deps.Realtime == nil {
		return nil, errMissingDispatcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		boards:   deps.Boards,
		notes:    deps.Notes,
		cursors:  deps.Cursors,
		presence: deps.Presence,
		realtime: deps.Realtime,
		logger:   logger,
	}

	router.GET("/boards", handler.handleListBoards)
	router.POST("/boards/ensure", handler.handleEnsureBoard)
	router.GET("/boards/:board", handler.handleGetBoard)
	router.GET("/boards/:board/notes", handler.handleListNotes)
	router.GET("/boards/:board/cursors", handler.handleListCursors)
	router.GET("/boards/:board/stream", handler.handleBoardStream)
	router.POST("/notes", handler.handleUpsertNote)
	router.DELETE("/notes/:id", handler.handleRemoveNote)
	router.POST("/cursors/pulse", handler.handleCursorPulse)
	router.POST("/presence/heartbeat", handler.handlePresenceHeartbeat)
	router.GET("/presence", handler.handlePresenceList)
	router.POST("/presence/disconnect", handler.handlePresenceDisconnect)

	return router, nil
}

type httpHandler struct {
	boards   *boards.Service
	notes    *notes.Service
	cursors  *cursors.Service
	presence *presence.Service
	realtime *realtime.Dispatcher
	logger   *zap.Logger
}

type boardPayload struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at_ms"`
}

func boardToPayload(board boards.Board) boardPayload {
	return boardPayload{
		ID:        board.ID,
		Slug:      board.Slug,
		Name:      board.Name,
		CreatedAt: board.CreatedAtMilli,
	}
}

func (h *httpHandler) handleListBoards(c *gin.Context) {
	listed, err := h.boards.List(c.Request.Context())
	if err != nil {
		h.logger.Error("board list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "board_list_failed"})
		return
	}
	payload := make([]boardPayload, 0, len(listed))
	for _, board := range listed {
		payload = append(payload, boardToPayload(board))
	}
	c.JSON(http.StatusOK, gin.H{"boards": payload})
}

type ensureBoardRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (h *httpHandler) handleEnsureBoard(c *gin.Context) {
	var request ensureBoardRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Slug) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	board, err := h.boards.Ensure(c.Request.Context(), request.Slug, request.Name)
	if errors.Is(err, boards.ErrInvalidSlug) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slug", "message": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("board ensure failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "board_ensure_failed"})
		return
	}
	c.JSON(http.StatusOK, boardToPayload(board))
}

func (h *httpHandler) handleGetBoard(c *gin.Context) {
	board, found, err := h.boards.GetBySlug(c.Request.Context(), c.Param("board"))
	if err != nil {
		h.logger.Error("board lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "board_lookup_failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "board_not_found"})
		return
	}
	c.JSON(http.StatusOK, boardToPayload(board))
}

type notePayload struct {
	ID        string  `json:"id"`
	BoardID   string  `json:"board_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Text      string  `json:"text"`
	Color     string  `json:"color"`
	Z         int64   `json:"z"`
	UpdatedAt int64   `json:"updated_at_ms"`
}

func noteToPayload(note notes.Note) notePayload {
	return notePayload{
		ID:        note.ID,
		BoardID:   note.BoardID,
		X:         note.X,
		Y:         note.Y,
		Width:     note.Width,
		Height:    note.Height,
		Text:      note.Text,
		Color:     note.Color,
		Z:         note.Z,
		UpdatedAt: note.UpdatedAtMilli,
	}
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	boardID := c.Param("board")
	listed, err := h.notes.List(c.Request.Context(), boardID)
	if err != nil {
		h.logger.Error("note list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "note_list_failed"})
		return
	}
	payload := make([]notePayload, 0, len(listed))
	for _, note := range listed {
		payload = append(payload, noteToPayload(note))
	}
	c.JSON(http.StatusOK, gin.H{"notes": payload})
}

type upsertNoteRequest struct {
	NoteID  string  `json:"note_id"`
	BoardID string  `json:"board_id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Text    string  `json:"text"`
	Color   string  `json:"color"`
	Z       int64   `json:"z"`
}

func (h *httpHandler) handleUpsertNote(c *gin.Context) {
	var request upsertNoteRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.BoardID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	note, err := h.notes.Upsert(c.Request.Context(), notes.UpsertRequest{
		NoteID:  request.NoteID,
		BoardID: request.BoardID,
		X:       request.X,
		Y:       request.Y,
		Width:   request.Width,
		Height:  request.Height,
		Text:    request.Text,
		Color:   request.Color,
		Z:       request.Z,
	})
	if errors.Is(err, notes.ErrNoteNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("note upsert failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "note_upsert_failed"})
		return
	}

	h.realtime.Publish(realtime.Event{
		Topic:     realtime.NoteTopic(note.BoardID),
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusOK, noteToPayload(note))
}

func (h *httpHandler) handleRemoveNote(c *gin.Context) {
	boardID, err := h.notes.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("note remove failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "note_remove_failed"})
		return
	}

	if boardID != "" {
		h.realtime.Publish(realtime.Event{
			Topic:     realtime.NoteTopic(boardID),
			Timestamp: time.Now().UTC(),
		})
	}
	c.Status(http.StatusNoContent)
}

type cursorPulseRequest struct {
	BoardID   string `json:"board_id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	X         int64  `json:"x"`
	Y         int64  `json:"y"`
}

func (h *httpHandler) handleCursorPulse(c *gin.Context) {
	var request cursorPulseRequest
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.BoardID) == "" ||
		strings.TrimSpace(request.SessionID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	err := h.cursors.Pulse(c.Request.Context(), cursors.PulseRequest{
		BoardID:   request.BoardID,
		SessionID: request.SessionID,
		UserID:    request.UserID,
		Name:      request.Name,
		Color:     request.Color,
		X:         request.X,
		Y:         request.Y,
	})
	if err != nil {
		h.logger.Error("cursor pulse failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor_pulse_failed"})
		return
	}

	h.realtime.Publish(realtime.Event{
		Topic:     realtime.CursorTopic(request.BoardID),
		Timestamp: time.Now().UTC(),
	})
	c.Status(http.StatusNoContent)
}

type cursorPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	X         int64  `json:"x"`
	Y         int64  `json:"y"`
	UpdatedAt int64  `json:"updated_at_ms"`
}

func cursorToPayload(cursor cursors.Cursor) cursorPayload {
	return cursorPayload{
		SessionID: cursor.SessionID,
		UserID:    cursor.UserID,
		Name:      cursor.Name,
		Color:     cursor.Color,
		X:         cursor.X,
		Y:         cursor.Y,
		UpdatedAt: cursor.UpdatedAtMilli,
	}
}

func (h *httpHandler) handleListCursors(c *gin.Context) {
	boardID := c.Param("board")
	listed, err := h.cursors.ListByBoard(c.Request.Context(), boardID)
	if err != nil {
		h.logger.Error("cursor list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor_list_failed"})
		return
	}
	payload := make([]cursorPayload, 0, len(listed))
	for _, cursor := range listed {
		payload = append(payload, cursorToPayload(cursor))
	}
	c.JSON(http.StatusOK, gin.H{"cursors": payload})
}

type heartbeatRequest struct {
	RoomID     string `json:"room_id"`
	UserID     string `json:"user_id"`
	SessionID  string `json:"session_id"`
	IntervalMS int64  `json:"interval_ms"`
}

func (h *httpHandler) handlePresenceHeartbeat(c *gin.Context) {
	var request heartbeatRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.presence.Heartbeat(
		c.Request.Context(),
		request.RoomID,
		request.UserID,
		request.SessionID,
		time.Duration(request.IntervalMS)*time.Millisecond,
	)
	if errors.Is(err, presence.ErrInvalidHeartbeat) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err != nil {
		h.logger.Error("presence heartbeat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "heartbeat_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room_token":    result.RoomToken,
		"session_token": result.SessionToken,
	})
}

func (h *httpHandler) handlePresenceList(c *gin.Context) {
	roomToken := c.Query("room_token")
	roster, err := h.presence.List(c.Request.Context(), roomToken)
	if errors.Is(err, presence.ErrInvalidToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
		return
	}
	if err != nil {
		h.logger.Error("presence list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "presence_list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roster": roster})
}

type disconnectRequest struct {
	SessionToken string `json:"session_token"`
}

func (h *httpHandler) handlePresenceDisconnect(c *gin.Context) {
	var request disconnectRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.SessionToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	err := h.presence.Disconnect(c.Request.Context(), request.SessionToken)
	if errors.Is(err, presence.ErrInvalidToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
		return
	}
	if err != nil {
		h.logger.Error("presence disconnect failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "presence_disconnect_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
