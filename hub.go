package main

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wildkeep/server/internal/guardian"
)

const writeWait = 10 * time.Second

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub tracks one websocket subscriber per owner and implements
// guardian.Notifier. Delivery is best-effort: sends run off the simulation
// goroutine and a failed write disconnects the subscriber.
type Hub struct {
	mu          sync.Mutex
	subscribers map[guardian.OwnerID]*subscriber
}

func newHub() *Hub {
	return &Hub{
		subscribers: make(map[guardian.OwnerID]*subscriber),
	}
}

// Subscribe binds a connection to the owner, replacing any previous one.
func (h *Hub) Subscribe(owner guardian.OwnerID, conn *websocket.Conn) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.subscribers[owner]; ok {
		existing.conn.Close()
	}
	sub := &subscriber{conn: conn}
	h.subscribers[owner] = sub
	return sub
}

// Disconnect drops and closes the owner's subscription.
func (h *Hub) Disconnect(owner guardian.OwnerID) {
	h.mu.Lock()
	sub, ok := h.subscribers[owner]
	if ok {
		delete(h.subscribers, owner)
	}
	h.mu.Unlock()
	if ok {
		sub.conn.Close()
	}
}

// SlotChanged implements guardian.Notifier with a full addon replay for the
// slot plus the structured slot payload.
func (h *Hub) SlotChanged(owner guardian.OwnerID, view guardian.SlotView) {
	for _, frame := range viewFrames(view) {
		h.send(owner, serverMessage{Type: "guardian", Frame: frame})
	}
	h.send(owner, serverMessage{Type: "slots", Slots: []slotPayload{slotPayloadOf(view)}})
}

// SlotCleared implements guardian.Notifier.
func (h *Hub) SlotCleared(owner guardian.OwnerID, slot int) {
	h.send(owner, serverMessage{Type: "guardian", Frame: frameDismiss(slot)})
	h.send(owner, serverMessage{Type: "guardian", Frame: frameName(slot, "", 0)})
}

// GuardianDismissed implements guardian.Notifier.
func (h *Hub) GuardianDismissed(owner guardian.OwnerID, slot int) {
	h.send(owner, serverMessage{Type: "guardian", Frame: frameDismiss(slot)})
}

// GuardianDied implements guardian.Notifier.
func (h *Hub) GuardianDied(owner guardian.OwnerID, slot int, name string) {
	h.send(owner, serverMessage{Type: "guardian", Frame: frameDismiss(slot)})
	h.send(owner, serverMessage{Type: "text", Text: name + " has fallen."})
}

// Message implements guardian.Notifier.
func (h *Hub) Message(owner guardian.OwnerID, text string) {
	h.send(owner, serverMessage{Type: "text", Text: text})
}

// Replay pushes the full slot state to a freshly connected owner.
func (h *Hub) Replay(owner guardian.OwnerID, views []guardian.SlotView) {
	payloads := make([]slotPayload, 0, len(views))
	for _, view := range views {
		for _, frame := range viewFrames(view) {
			h.send(owner, serverMessage{Type: "guardian", Frame: frame})
		}
		payloads = append(payloads, slotPayloadOf(view))
	}
	h.send(owner, serverMessage{Type: "slots", Slots: payloads, ServerTime: time.Now().UnixMilli()})
}

func (h *Hub) send(owner guardian.OwnerID, msg serverMessage) {
	h.mu.Lock()
	sub, ok := h.subscribers[owner]
	h.mu.Unlock()
	if !ok {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal message for %s: %v", owner, err)
		return
	}
	go func() {
		sub.mu.Lock()
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := sub.conn.WriteMessage(websocket.TextMessage, data)
		sub.mu.Unlock()
		if err != nil {
			log.Printf("failed to send update to %s: %v", owner, err)
			h.Disconnect(owner)
		}
	}()
}

// sendError reports a rejected command to the owner.
func (h *Hub) sendError(owner guardian.OwnerID, err error) {
	h.send(owner, serverMessage{Type: "error", Error: err.Error()})
}
