package api

import (
	"context"
	"errors"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/synk-web/synk/internal/chat"
	"github.com/synk-web/synk/internal/observe"
)

// wsError is the frame sent when a turn fails.
type wsError struct {
	Error string `json:"error"`
}

// chatSocket runs one turn per inbound frame, in order, and answers each
// with the turn response or an error frame. A frame that is not valid JSON
// closes the connection with StatusInvalidFramePayloadData.
func (s *Server) chatSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		// Accept has already written the HTTP error.
		return
	}
	defer conn.CloseNow()

	ctx := c.Request.Context()
	log := observe.Logger(ctx)
	for {
		var req chat.TurnRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				return
			}
			// wsjson has already sent the close frame for undecodable input.
			log.Debug("api: websocket read failed", "err", err)
			return
		}

		var out any
		resp, err := s.svc.Turn(ctx, req)
		if err != nil {
			msg := err.Error()
			if statusOf(err) >= 500 {
				log.Error("api: websocket turn failed", "err", err)
				msg = "internal error"
			}
			out = wsError{Error: msg}
		} else {
			out = resp
		}
		if err := wsjson.Write(ctx, conn, out); err != nil {
			log.Debug("api: websocket write failed", "err", err)
			return
		}
	}
}
