// Package stream fans simulation snapshots out to push subscribers.
package stream

import (
	"sync"
	"sync/atomic"

	"imelt/internal/models"
)

// Frame types.
const (
	FrameState      = "state"
	FrameInsight    = "insight"
	FramePong       = "pong"
	FrameSubscribed = "subscribed"
	FrameError      = "error"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 16

// Frame is one push message.
type Frame struct {
	Type    string `json:"type"`
	HeatID  int    `json:"heatId,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Subscriber receives frames for a single heat.
type Subscriber struct {
	heatID int
	ch     chan Frame
	once   sync.Once
}

// Frames is closed when the subscriber is removed or the hub closes.
func (s *Subscriber) Frames() <-chan Frame { return s.ch }

func (s *Subscriber) HeatID() int { return s.heatID }

func (s *Subscriber) close() { s.once.Do(func() { close(s.ch) }) }

// Hub routes frames by heat id. Publishing never blocks: a full subscriber loses the frame.
type Hub struct {
	mu      sync.Mutex
	subs    map[int]map[*Subscriber]struct{}
	latest  map[int]models.HeatState
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[int]map[*Subscriber]struct{}),
		latest: make(map[int]models.HeatState),
		buffer: buffer,
	}
}

// Subscribe registers interest in heatID. The latest cached snapshot, if any, is queued first.
func (h *Hub) Subscribe(heatID int) *Subscriber {
	sub := &Subscriber{heatID: heatID, ch: make(chan Frame, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return sub
	}
	if st, ok := h.latest[heatID]; ok {
		sub.ch <- Frame{Type: FrameState, HeatID: heatID, Payload: st}
	}
	set, ok := h.subs[heatID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[heatID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	heatID := sub.HeatID()
	h.mu.Lock()
	if set, ok := h.subs[heatID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, heatID)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// Latest returns the most recent snapshot published for heatID.
func (h *Hub) Latest(heatID int) (models.HeatState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.latest[heatID]
	return st, ok
}

// PublishState caches and fans out st. Snapshots older than the cached version are discarded
// so each subscriber sees versions in increasing order.
func (h *Hub) PublishState(st models.HeatState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if prev, ok := h.latest[st.HeatID]; ok && st.Version <= prev.Version {
		return
	}
	h.latest[st.HeatID] = st
	h.fanout(Frame{Type: FrameState, HeatID: st.HeatID, Payload: st})
}

func (h *Hub) PublishInsight(heatID int, in models.Insight) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.fanout(Frame{Type: FrameInsight, HeatID: heatID, Payload: in})
}

// fanout sends without blocking. Caller holds mu.
func (h *Hub) fanout(f Frame) {
	for sub := range h.subs[f.HeatID] {
		select {
		case sub.ch <- f:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers counts live subscribers of heatID.
func (h *Hub) Subscribers(heatID int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[heatID])
}

// Dropped counts frames lost to full subscriber queues.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close releases every subscriber. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, set := range h.subs {
		for sub := range set {
			sub.close()
		}
		delete(h.subs, id)
	}
}
