package transports

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mimi-labs/voicestream/src/logger"
)

// WebSocketServer upgrades client connections, assigns each one an
// opaque client id, and keeps the ClientRegistry current as sockets
// come and go. The browser learns its id from the init message and
// echoes it with every voice query so audio can be routed back.
type WebSocketServer struct {
	registry *ClientRegistry
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewWebSocketServer creates a server feeding the given registry.
func NewWebSocketServer(registry *ClientRegistry) *WebSocketServer {
	return &WebSocketServer{
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // same-origin enforcement lives at the proxy
			},
		},
		log: logger.WithPrefix("WebSocket"),
	}
}

type initMessage struct {
	Type      string `json:"type"`
	ClientID  string `json:"clientId"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type controlMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
}

// ServeHTTP handles one websocket client for the lifetime of its
// connection.
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Upgrade failed: %v", err)
		return
	}

	clientID := uuid.NewString()
	s.registry.Register(clientID, conn)
	s.log.Info("Client connected: %s", clientID)

	defer func() {
		s.registry.Unregister(clientID)
		conn.Close()
		s.log.Info("Client disconnected: %s", clientID)
	}()

	init := initMessage{
		Type:      "init",
		ClientID:  clientID,
		Message:   "WebSocket connection established",
		Timestamp: time.Now().UnixMilli(),
	}
	payload, _ := json.Marshal(init)
	if !s.registry.DeliverText(clientID, payload) {
		s.log.Error("Init message to client %s failed", clientID)
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Read error for client %s: %v", clientID, err)
			}
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Debug("Non-JSON message from client %s", clientID)
			continue
		}

		switch msg.Type {
		case "ping":
			pong, _ := json.Marshal(controlMessage{Type: "pong", ClientID: clientID})
			if !s.registry.DeliverText(clientID, pong) {
				s.log.Warn("Pong to client %s failed", clientID)
				return
			}
		case "session_info":
			s.log.Info("Client %s attached to session %s", clientID, msg.SessionID)
		default:
			s.log.Debug("Unhandled message type %q from client %s", msg.Type, clientID)
		}
	}
}
