// Package runtime owns the in-memory machinery of the server: the connection
// registry and the supervised background workers. It orchestrates the system
// without containing business logic or domain rules.
package runtime

import (
	"context"
	"log/slog"
	"sync"

	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/domain/event"
)

type set map[string]struct{}

// Registry is the process-wide mapping from room to the set of live
// connections currently subscribed to it. It is the only component allowed
// to touch the subscription map; sessions delegate every cross-connection
// effect through it.
type Registry struct {
	mu        sync.RWMutex
	sinks     map[string]contract.EventSink // connection id -> outbound sink
	roomConns map[domain.RoomID]set         // room id -> connection ids
	log       *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		sinks:     make(map[string]contract.EventSink),
		roomConns: make(map[domain.RoomID]set),
		log:       log,
	}
}

// Join registers a connection under a room. Once Join returns, every
// subsequent Broadcast for that room reaches the connection until Leave.
// If the room has no entry yet, it is initialized on the fly.
func (r *Registry) Join(roomID domain.RoomID, connID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[connID] = sink

	if _, ok := r.roomConns[roomID]; !ok {
		r.roomConns[roomID] = make(set)
	}
	r.roomConns[roomID][connID] = struct{}{}
}

// Leave removes a connection. Idempotent: repeated calls for the same
// connection are no-ops. Empty room entries are pruned so the map does not
// leak as rooms come and go.
func (r *Registry) Leave(roomID domain.RoomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sinks, connID)

	if conns, ok := r.roomConns[roomID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.roomConns, roomID)
		}
	}
}

// Broadcast delivers an event to every connection registered for the room at
// the moment of iteration. Delivery to each sink is independent: a full or
// closed sink is logged and skipped, never propagated to the caller or to the
// remaining peers.
func (r *Registry) Broadcast(ctx context.Context, roomID domain.RoomID, e event.DomainEvent) {
	for connID, s := range r.sinksForRoom(roomID) {
		if err := s.Consume(ctx, e); err != nil {
			r.log.Warn("Dropping event for connection",
				"conn_id", connID,
				"room_id", roomID,
				"event", e.EventType(),
				"error", err)
		}
	}
}

// sinksForRoom resolves the room's connection ids into sinks under a read
// lock, then releases it so slow consumers never hold up Join/Leave.
func (r *Registry) sinksForRoom(roomID domain.RoomID) map[string]contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.roomConns[roomID]
	if !ok {
		return nil
	}
	active := make(map[string]contract.EventSink, len(conns))
	for connID := range conns {
		if s, exists := r.sinks[connID]; exists {
			active[connID] = s
		}
	}
	return active
}

// Gauge reports current registry size, read by the telemetry worker.
func (r *Registry) Gauge() (rooms, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomConns), len(r.sinks)
}
