package ws

import (
	"sync"

	"go.uber.org/zap"
)

// Hub sizing.
const (
	// queueSize is how many messages a slow client may lag before drops.
	queueSize = 64
	// backlogSize is how many recent events a reconnecting page can replay.
	backlogSize = 32
)

// Subscription is one connection's view of the hub: the filtered messages
// published after it attached.
type Subscription struct {
	remote  string
	filter  Filter
	queue   chan Message
	dropped int
}

// C delivers the subscription's messages in sequence order.
func (s *Subscription) C() <-chan Message { return s.queue }

// Hub numbers forwarded events, keeps a short backlog of them, and fans
// each one out to the subscriptions whose filter matches its topic.
type Hub struct {
	mu      sync.Mutex
	seq     uint64
	backlog []Message
	subs    map[*Subscription]struct{}
	logger  *zap.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Publish stamps msg with the next sequence number, records it in the
// backlog, and queues it for every matching subscription. A subscription
// whose queue is full misses the message; the sequence gap shows it.
func (h *Hub) Publish(msg Message) Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	msg.Seq = h.seq
	h.backlog = append(h.backlog, msg)
	if over := len(h.backlog) - backlogSize; over > 0 {
		h.backlog = h.backlog[over:]
	}

	for s := range h.subs {
		if !s.filter.Match(string(msg.Type)) {
			continue
		}
		select {
		case s.queue <- msg:
		default:
			s.dropped++
			streamDropped.Inc()
			if s.dropped == 1 {
				h.logger.Warn("event stream client falling behind, dropping messages",
					zap.String("remote", s.remote), zap.Uint64("seq", msg.Seq))
			}
		}
	}
	return msg
}

// Attach registers a subscription. When since is non-zero, the backlog
// events after since that pass filter are returned for replay; events
// older than the backlog are gone and counted in missed. last is the
// sequence number at attach time. Replayed and queued messages never
// overlap.
func (h *Hub) Attach(remote string, filter Filter, since uint64) (s *Subscription, replay []Message, missed int, last uint64) {
	s = &Subscription{
		remote: remote,
		filter: filter,
		queue:  make(chan Message, queueSize),
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	last = h.seq
	if since > 0 && since < last {
		oldest := last + 1
		if len(h.backlog) > 0 {
			oldest = h.backlog[0].Seq
		}
		if since+1 < oldest {
			missed = int(oldest - since - 1)
		}
		for _, m := range h.backlog {
			if m.Seq > since && filter.Match(string(m.Type)) {
				replay = append(replay, m)
			}
		}
	}
	n := len(h.subs)
	h.mu.Unlock()

	streamClients.Inc()
	h.logger.Debug("event stream client attached",
		zap.String("remote", remote), zap.Int("clients", n), zap.Int("replayed", len(replay)))
	return s, replay, missed, last
}

// Detach removes s. Detaching twice is harmless.
func (h *Hub) Detach(s *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	h.mu.Unlock()

	if ok {
		streamClients.Dec()
		h.logger.Debug("event stream client detached",
			zap.String("remote", s.remote), zap.Int("dropped", s.dropped))
	}
}

// Len returns the number of attached subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Seq returns the sequence number of the last published event.
func (h *Hub) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}
