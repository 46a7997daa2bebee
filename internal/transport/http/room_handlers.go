package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
)

// RoomHandlers provides read-only HTTP handlers for inspecting rooms.
type RoomHandlers struct {
	svc *core.Service
	hub *core.Hub
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(svc *core.Service, hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		svc: svc,
		hub: hub,
		log: logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	CreatedAt string `json:"created_at"`
}

// MembersResponse lists the usernames of a room's members.
type MembersResponse struct {
	Members []string `json:"members"`
}

// StatsResponse reports live process counters.
type StatsResponse struct {
	Connections int `json:"connections"`
}

// GetRoom returns a room.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")

	room, err := h.svc.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		h.fail(c, roomID, err)
		return
	}

	details := roomDetails(ctx, h.svc, room)
	c.JSON(http.StatusOK, RoomResponse{
		ID:        details.ID,
		Name:      details.RoomName,
		Owner:     details.Owner,
		CreatedAt: details.CreatedAt.Format(time.RFC3339),
	})
}

// ListMembers returns the member usernames of a room; a missing room has none.
// GET /api/rooms/:id/members
func (h *RoomHandlers) ListMembers(c *gin.Context) {
	roomID := c.Param("id")

	members, err := h.svc.QueryMembers(c.Request.Context(), "", roomID)
	if err != nil {
		h.fail(c, roomID, err)
		return
	}

	c.JSON(http.StatusOK, MembersResponse{Members: usernames(members)})
}

// ListMessages returns the history of a room in ascending order.
// GET /api/rooms/:id/messages
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")

	if _, err := h.svc.Rooms.GetRoom(ctx, roomID); err != nil {
		h.fail(c, roomID, err)
		return
	}
	history, err := h.svc.Messages.History(ctx, roomID)
	if err != nil {
		h.fail(c, roomID, err)
		return
	}

	h.log.Debug().Str("room", roomID).Int("message_count", len(history)).Msg("history listed")
	c.JSON(http.StatusOK, chatMessages(history))
}

// Stats reports the number of live connections on this process.
// GET /api/stats
func (h *RoomHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{Connections: h.hub.ClientCount()})
}

func (h *RoomHandlers) fail(c *gin.Context, roomID string, err error) {
	if errors.Is(err, core.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	ce := core.AsCoreError(err)
	if ce.Code == core.ErrCodeBadRequest {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ce.Message})
		return
	}
	h.log.Error().Err(err).Str("room", roomID).Msg("room request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

