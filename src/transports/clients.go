// Package transports routes packaged audio frames to browser clients
// over websockets. The ClientRegistry is the single "deliver these
// bytes to this client" primitive the turn orchestrator depends on.
package transports

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mimi-labs/voicestream/src/logger"
)

// ClientConn is the socket surface the registry needs. *websocket.Conn
// satisfies it; tests substitute an in-memory fake.
type ClientConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ClientRegistry maps opaque client ids to live sockets. At most one
// socket per id: registering an id supersedes any prior entry. Mutated
// from independent event sources (connection handlers, orchestrator
// deliveries), so every operation takes the registry lock.
type ClientRegistry struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	log     *logger.Logger
}

type clientEntry struct {
	conn    ClientConn
	writeMu sync.Mutex // serialize writes to one socket
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*clientEntry),
		log:     logger.WithPrefix("Clients"),
	}
}

// Register installs a socket for clientID, silently superseding any
// prior entry for that id.
func (r *ClientRegistry) Register(clientID string, conn ClientConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[clientID] = &clientEntry{conn: conn}
}

// Unregister removes the entry for clientID if present.
func (r *ClientRegistry) Unregister(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
}

// Count returns the number of registered clients.
func (r *ClientRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Deliver sends one binary message to the client's socket. It returns
// false when the id is unknown or the write fails; a failed socket is
// pruned so a re-registered client receives subsequent frames. The
// caller logs and continues — no retry mid-turn.
func (r *ClientRegistry) Deliver(clientID string, data []byte) bool {
	r.mu.Lock()
	entry, ok := r.clients[clientID]
	r.mu.Unlock()

	if !ok {
		r.log.Warn("Client %s not registered, dropping %d bytes", clientID, len(data))
		return false
	}

	entry.writeMu.Lock()
	err := entry.conn.WriteMessage(websocket.BinaryMessage, data)
	entry.writeMu.Unlock()

	if err != nil {
		r.log.Error("Delivery to client %s failed, pruning: %v", clientID, err)
		r.prune(clientID, entry)
		return false
	}
	return true
}

// DeliverText sends one text message to the client's socket under the
// same per-socket write lock as Deliver, so control messages never
// interleave with frame writes.
func (r *ClientRegistry) DeliverText(clientID string, data []byte) bool {
	r.mu.Lock()
	entry, ok := r.clients[clientID]
	r.mu.Unlock()

	if !ok {
		return false
	}

	entry.writeMu.Lock()
	err := entry.conn.WriteMessage(websocket.TextMessage, data)
	entry.writeMu.Unlock()

	if err != nil {
		r.log.Error("Text delivery to client %s failed, pruning: %v", clientID, err)
		r.prune(clientID, entry)
		return false
	}
	return true
}

// Broadcast delivers data to every registered client. Diagnostic
// operation only; turn delivery always targets a single client.
func (r *ClientRegistry) Broadcast(data []byte) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sent := 0
	for _, id := range ids {
		if r.Deliver(id, data) {
			sent++
		}
	}
	r.log.Info("Broadcast reached %d of %d clients", sent, len(ids))
	return sent
}

// prune removes the entry only if it is still the current one, so a
// concurrent re-registration is never knocked out.
func (r *ClientRegistry) prune(clientID string, entry *clientEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.clients[clientID]; ok && current == entry {
		delete(r.clients, clientID)
	}
}
