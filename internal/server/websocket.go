package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spektr-org/finchat/internal/chat"
	"github.com/spektr-org/finchat/translator"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	maxHistory     = 40
)

// wsClient is one WebSocket connection. Messages are answered in order;
// the connection keeps its own conversation history.
type wsClient struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	history []translator.Turn
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &wsClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 8),
	}
	s.logger.Info().Str("session", c.id).Msg("WebSocket client connected")

	ctx, cancel := context.WithCancel(context.Background())
	go s.writePump(c)
	s.readPump(ctx, c)
	cancel()
}

func (s *Server) readPump(ctx context.Context, c *wsClient) {
	defer func() {
		close(c.send)
		s.logger.Info().Str("session", c.id).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Str("session", c.id).Msg("WebSocket read failed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply := s.answerFrame(ctx, c, data)
		out, err := json.Marshal(reply)
		if err != nil {
			s.logger.Error().Err(err).Msg("WebSocket reply encoding failed")
			continue
		}
		c.send <- out
	}
}

// answerFrame treats a frame as a chatRequest when it is a JSON object with
// a message, and as the raw query text otherwise. Frames are held to the
// same limits as POST /chat.
func (s *Server) answerFrame(ctx context.Context, c *wsClient, data []byte) chatResponse {
	req := chatRequest{Message: strings.TrimSpace(string(data))}
	var framed chatRequest
	if json.Unmarshal(data, &framed) == nil && framed.Message != "" {
		req = framed
	}
	if err := s.validate.Struct(req); err != nil {
		return chatResponse{Error: validationError(err).Error(), ConversationHistory: c.history, RequestID: c.id}
	}
	if req.ConversationHistory == nil {
		req.ConversationHistory = c.history
	}

	resp, err := s.service.Respond(ctx, chat.Request{Message: req.Message, History: req.ConversationHistory})
	if err != nil {
		return chatResponse{Error: err.Error(), ConversationHistory: req.ConversationHistory, RequestID: c.id}
	}

	c.history = resp.History
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}
	return s.chatResponse(resp, c.id)
}

func (s *Server) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
