package httpapi

import (
	"net/http"
	"time"

	"promptcraft/common"
	"promptcraft/internal/uploads"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// snapshotMessage 连接建立后首先发送的完整列表
type snapshotMessage struct {
	Type    string         `json:"type"`
	Session string         `json:"session"`
	Items   []uploads.Item `json:"items"`
}

// handleWebSocket 推送当前会话的上传项变化
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, ctrl := s.sessions.Acquire(w, r)

	conn, err := upgrader.Upgrade(w, r, w.Header().Clone())
	if err != nil {
		common.WithSession(id).WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	logger := common.WithSession(id)
	logger.Info("WebSocket connected")

	s.sessions.attach(id)
	events, unsubscribe := ctrl.Subscribe()
	defer func() {
		unsubscribe()
		s.sessions.detach(id)
		conn.Close()
		logger.Info("WebSocket disconnected")
	}()

	done := make(chan struct{})
	go readPump(conn, done)

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snapshotMessage{Type: "snapshot", Session: id, Items: ctrl.Items()}); err != nil {
		logger.WithError(err).Warn("WebSocket write error")
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.WithError(err).Warn("WebSocket write error")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理 pong 与关闭，客户端发来的消息被忽略
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				common.WithError(err).Debug("WebSocket read error")
			}
			return
		}
	}
}
