package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"quotecards/internal/util"
	"quotecards/pkg/domain"
)

const (
	chatWriteWait  = 10 * time.Second
	chatPongWait   = 60 * time.Second
	chatPingPeriod = chatPongWait * 9 / 10
	chatSendBuffer = 32
)

// handleChatStream pushes every new message of a channel to a websocket client. The stream is
// one-way; messages are posted through the REST endpoint.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request, user domain.User, channelID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	if _, err := s.app.GetChannel(r.Context(), user.ID, channelID); err != nil {
		writeAppError(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}
	defer conn.Close()
	logger := util.LoggerFromContext(r.Context()).With("channel_id", channelID, "user_id", user.ID)

	send := make(chan domain.ChatMessage, chatSendBuffer)
	unsubscribe := s.app.SubscribeChat(channelID, func(msg domain.ChatMessage) {
		select {
		case send <- msg:
		default:
			logger.Warn("chat stream client too slow, message dropped", "message_id", msg.ID)
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(chatPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(chatPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(chatPingPeriod)
	defer ping.Stop()
	logger.Info("chat stream opened")
	for {
		select {
		case <-closed:
			logger.Info("chat stream closed")
			return
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Info("chat stream write failed", "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(chatWriteWait)); err != nil {
				return
			}
		}
	}
}
