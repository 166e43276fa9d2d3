// Package dispatch fans out realtime events to room subscribers. Room
// membership is in-memory only; clients re-subscribe on reconnect and history
// is replayed from the durable store, never from here.
package dispatch

import (
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"github.com/mindhaven/crisis-api/models"
)

// Subscriber is one connected realtime client. Enqueue must never block: it
// returns false when the subscriber's outbound queue is full, at which point
// the hub disconnects it rather than stalling the room.
type Subscriber interface {
	Enqueue(ev models.Event) bool
	Close()
}

const shardCount = 16

// Hub maps room ids to subscriber sets, sharded by room id so concurrent
// publishes to unrelated rooms never contend on one lock.
type Hub struct {
	shards [shardCount]*shard
}

type shard struct {
	mu    sync.RWMutex
	rooms map[string]map[Subscriber]struct{}
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	h := &Hub{}
	for i := range h.shards {
		h.shards[i] = &shard{rooms: make(map[string]map[Subscriber]struct{})}
	}
	return h
}

func (h *Hub) shardFor(roomID string) *shard {
	f := fnv.New32a()
	f.Write([]byte(roomID))
	return h.shards[f.Sum32()%shardCount]
}

// Subscribe adds sub to the room, creating the room on first use.
func (h *Hub) Subscribe(roomID string, sub Subscriber) {
	sh := h.shardFor(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.rooms[roomID]
	if !ok {
		set = make(map[Subscriber]struct{})
		sh.rooms[roomID] = set
	}
	set[sub] = struct{}{}
}

// Unsubscribe removes sub from the room, deleting the room when it empties.
func (h *Hub) Unsubscribe(roomID string, sub Subscriber) {
	sh := h.shardFor(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.rooms[roomID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(sh.rooms, roomID)
	}
}

// Publish delivers ev to every current subscriber of the room. Delivery is
// isolated per subscriber: one full queue disconnects that subscriber only
// and the rest receive the event normally.
func (h *Hub) Publish(roomID string, ev models.Event) {
	sh := h.shardFor(roomID)
	sh.mu.RLock()
	set := sh.rooms[roomID]
	subs := make([]Subscriber, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	sh.mu.RUnlock()

	for _, sub := range subs {
		if !sub.Enqueue(ev) {
			zap.S().Warnw("subscriber queue overflow, disconnecting",
				"room", roomID,
				"eventType", ev.Type,
			)
			h.Unsubscribe(roomID, sub)
			sub.Close()
		}
	}
}

// RoomSize reports the current subscriber count, for the dashboard and tests.
func (h *Hub) RoomSize(roomID string) int {
	sh := h.shardFor(roomID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.rooms[roomID])
}
