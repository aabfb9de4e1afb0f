package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsPageSize = 5

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsRequest asks for one page of a channel's items.
type wsRequest struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Filter string `json:"filter"`
}

// ItemsSocket serves channel items over a websocket, one page of up to five
// items per request message.
func (h *Handler) ItemsSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				slog.Debug("Websocket read failed", "error", err)
			}
			return
		}

		if err := conn.WriteJSON(h.socketPage(req)); err != nil {
			slog.Debug("Websocket write failed", "error", err)
			return
		}
	}
}

func (h *Handler) socketPage(req wsRequest) any {
	if req.Offset < 0 {
		req.Offset = 0
	}

	ch, err := h.channelRepo.GetChannel(req.Name)
	if err != nil {
		slog.Error("Database error", "operation", "get_channel", "channel", req.Name, "error", err)
		return gin.H{"error": "Database error"}
	}
	if ch == nil {
		return gin.H{"error": "Channel not found"}
	}

	items, err := h.itemRepo.GetItems(ch.ID, req.Offset, wsPageSize, req.Filter)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "channel", req.Name, "error", err)
		return gin.H{"error": "Database error"}
	}

	return newItemResponses(items)
}
