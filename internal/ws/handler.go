// Package ws streams config and theme events to browsers over WebSocket so
// open pages can restyle or reload when an administrator saves, restores,
// or switches themes.
package ws

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/mediatheme/internal/event"
	"github.com/HerbHall/mediatheme/internal/server"
	"github.com/HerbHall/mediatheme/internal/version"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// writeTimeout bounds a single message write to a slow client.
const writeTimeout = 5 * time.Second

// DefaultTopics are forwarded unless WithTopics says otherwise.
var DefaultTopics = []string{
	string(MessageConfigSaved),
	string(MessageConfigRestore),
	string(MessageConfigChanged),
	string(MessageBackupDeleted),
	string(MessageThemeReloaded),
	string(MessageThemeChanged),
	string(MessageEnhancerReady),
}

// Snapshot returns the state sent in the hello message.
type Snapshot func(ctx context.Context) any

// Handler serves GET {base}/api/events.
//
// Query parameters:
//
//	topics  comma-separated names or "group.*" patterns; default all
//	since   last seq the page saw; recent events after it are replayed
//
// A hello seq lower than the page's since means the server restarted and
// the page should reload its state.
type Handler struct {
	hub      *Hub
	base     string
	topics   []string
	snapshot Snapshot
	logger   *zap.Logger
	unsubs   []func()
}

// Compile-time check that Handler implements the server interface.
var _ server.RouteRegistrar = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithTopics replaces DefaultTopics.
func WithTopics(topics ...string) Option {
	return func(h *Handler) {
		if len(topics) > 0 {
			h.topics = topics
		}
	}
}

// WithSnapshot sets the state provider for hello messages.
func WithSnapshot(fn Snapshot) Option {
	return func(h *Handler) { h.snapshot = fn }
}

// NewHandler creates the stream handler and subscribes it to its topics on
// bus. A nil bus yields a stream that only ever says hello.
func NewHandler(bus event.Subscriber, basePath string, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		base:   strings.TrimSuffix(basePath, "/"),
		topics: DefaultTopics,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.hub = NewHub(logger)

	if bus != nil {
		for _, topic := range h.topics {
			h.unsubs = append(h.unsubs, bus.Subscribe(topic, h.forward))
		}
		logger.Info("forwarding events to websocket clients", zap.Strings("topics", h.topics))
	}
	return h
}

// RegisterRoutes registers the stream route.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+h.base+"/api/events", h.handleEventStream)
}

// Hub exposes the subscription registry.
func (h *Handler) Hub() *Hub { return h.hub }

// Close unsubscribes from the bus.
func (h *Handler) Close() {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil
}

func (h *Handler) forward(_ context.Context, e event.Event) {
	h.hub.Publish(Message{
		Type:      MessageType(e.Topic),
		EventID:   e.ID,
		Source:    e.Source,
		Timestamp: e.Timestamp,
		Data:      e.Payload,
	})
}

// handleEventStream upgrades the connection and streams matching events.
//
//	@Summary		Event stream
//	@Description	WebSocket stream of config and theme events. Filter with ?topics=config.*,enhancer.*; resume with ?since=<seq>.
//	@Tags			events
//	@Param			topics	query		string	false	"Topic names or group.* patterns"
//	@Param			since	query		integer	false	"Last seq received"
//	@Success		101		{string}	string	"Switching Protocols"
//	@Failure		400		{object}	server.Envelope
//	@Router			/api/events [get]
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := ParseFilter(q.Get("topics"), h.topics)
	if err != nil {
		server.BadRequest(w, err.Error())
		return
	}
	var since uint64
	if raw := q.Get("since"); raw != "" {
		if since, err = strconv.ParseUint(raw, 10, 64); err != nil {
			server.BadRequest(w, "since must be a non-negative integer")
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The config API is open to any origin; the stream matches it.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sub, replay, missed, last := h.hub.Attach(r.RemoteAddr, filter, since)
	defer h.hub.Detach(sub)

	// Pages never send; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	hello := HelloData{
		Version: version.Short(),
		Topics:  filter.Select(h.topics),
		Seq:     last,
		Missed:  missed,
	}
	if h.snapshot != nil {
		hello.State = h.snapshot(ctx)
	}
	greeting := append([]Message{{Type: MessageHello, Timestamp: time.Now().UTC(), Data: hello}}, replay...)

	if err := h.stream(ctx, conn, sub, greeting); err != nil && ctx.Err() == nil {
		h.logger.Debug("event stream ended", zap.String("remote", r.RemoteAddr), zap.Error(err))
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// stream writes greeting, then queued messages until ctx ends or a write
// fails.
func (h *Handler) stream(ctx context.Context, conn *websocket.Conn, sub *Subscription, greeting []Message) error {
	for _, msg := range greeting {
		if err := writeMessage(ctx, conn, msg); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-sub.C():
			if err := writeMessage(ctx, conn, msg); err != nil {
				return err
			}
		}
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
