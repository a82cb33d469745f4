package ws

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func mustFilter(t *testing.T, spec string) Filter {
	t.Helper()
	f, err := ParseFilter(spec, DefaultTopics)
	if err != nil {
		t.Fatalf("ParseFilter(%q): %v", spec, err)
	}
	return f
}

func publish(h *Hub, topic MessageType) Message {
	return h.Publish(Message{Type: topic, Timestamp: time.Now().UTC()})
}

func drain(s *Subscription) []Message {
	var out []Message
	for {
		select {
		case m := <-s.C():
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestHub_PublishNumbersEvents(t *testing.T) {
	h := NewHub(testLogger())

	for i := uint64(1); i <= 3; i++ {
		if got := publish(h, MessageConfigSaved).Seq; got != i {
			t.Errorf("Seq = %d, want %d", got, i)
		}
	}
	if h.Seq() != 3 {
		t.Errorf("hub Seq = %d, want 3", h.Seq())
	}
}

func TestHub_FiltersPerSubscription(t *testing.T) {
	h := NewHub(testLogger())
	configOnly, _, _, _ := h.Attach("10.0.0.1:1", mustFilter(t, "config.*"), 0)
	themeOnly, _, _, _ := h.Attach("10.0.0.2:1", mustFilter(t, "enhancer.theme_changed"), 0)
	everything, _, _, _ := h.Attach("10.0.0.3:1", Filter{}, 0)

	publish(h, MessageConfigSaved)
	publish(h, MessageThemeChanged)
	publish(h, MessageConfigRestore)
	publish(h, MessageThemeReloaded)

	types := func(ms []Message) []MessageType {
		out := make([]MessageType, len(ms))
		for i, m := range ms {
			out[i] = m.Type
		}
		return out
	}
	check := func(name string, s *Subscription, want ...MessageType) {
		t.Helper()
		got := types(drain(s))
		if len(got) != len(want) {
			t.Fatalf("%s got %v, want %v", name, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s got %v, want %v", name, got, want)
				return
			}
		}
	}
	check("config.*", configOnly, MessageConfigSaved, MessageConfigRestore)
	check("theme_changed", themeOnly, MessageThemeChanged)
	check("all", everything, MessageConfigSaved, MessageThemeChanged, MessageConfigRestore, MessageThemeReloaded)
}

func TestHub_AttachReplaysAfterSince(t *testing.T) {
	h := NewHub(testLogger())
	for _, typ := range []MessageType{MessageConfigSaved, MessageThemeChanged, MessageConfigChanged, MessageThemeChanged} {
		publish(h, typ)
	}

	_, replay, missed, last := h.Attach("10.0.0.1:1", mustFilter(t, "enhancer.*"), 1)

	if last != 4 {
		t.Errorf("last = %d, want 4", last)
	}
	if missed != 0 {
		t.Errorf("missed = %d, want 0", missed)
	}
	if len(replay) != 2 || replay[0].Seq != 2 || replay[1].Seq != 4 {
		t.Errorf("replay = %+v, want seq 2 and 4", replay)
	}
}

func TestHub_AttachWithoutSinceReplaysNothing(t *testing.T) {
	h := NewHub(testLogger())
	publish(h, MessageConfigSaved)

	_, replay, missed, last := h.Attach("10.0.0.1:1", Filter{}, 0)
	if len(replay) != 0 || missed != 0 || last != 1 {
		t.Errorf("replay=%d missed=%d last=%d, want 0 0 1", len(replay), missed, last)
	}

	// A page ahead of the hub (server restarted) gets no replay either.
	_, replay, _, _ = h.Attach("10.0.0.1:2", Filter{}, 50)
	if len(replay) != 0 {
		t.Errorf("replay for since ahead of hub = %d, want 0", len(replay))
	}
}

func TestHub_BacklogIsBounded(t *testing.T) {
	h := NewHub(testLogger())
	total := backlogSize + 10
	for range total {
		publish(h, MessageConfigSaved)
	}

	_, replay, missed, _ := h.Attach("10.0.0.1:1", Filter{}, 1)

	if len(replay) != backlogSize {
		t.Fatalf("replayed %d, want %d", len(replay), backlogSize)
	}
	if replay[0].Seq != uint64(total-backlogSize+1) {
		t.Errorf("oldest replayed seq = %d, want %d", replay[0].Seq, total-backlogSize+1)
	}
	// Seqs 2..10 fell out of the backlog.
	if missed != total-backlogSize-1 {
		t.Errorf("missed = %d, want %d", missed, total-backlogSize-1)
	}
}

func TestHub_SlowSubscriberDropsAndWarnsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := NewHub(zap.New(core))
	slow, _, _, _ := h.Attach("10.0.0.1:1", Filter{}, 0)

	for range queueSize + 5 {
		publish(h, MessageConfigSaved)
	}

	got := drain(slow)
	if len(got) != queueSize {
		t.Fatalf("queued %d, want %d", len(got), queueSize)
	}
	if got[len(got)-1].Seq != queueSize {
		t.Errorf("last queued seq = %d, want %d", got[len(got)-1].Seq, queueSize)
	}
	if logs.Len() != 1 {
		t.Errorf("warnings = %d, want 1", logs.Len())
	}

	// Once drained, the subscription receives again; the seq gap shows the loss.
	if m := publish(h, MessageConfigSaved); m.Seq != queueSize+6 {
		t.Fatalf("seq = %d", m.Seq)
	}
	if next := drain(slow); len(next) != 1 || next[0].Seq != queueSize+6 {
		t.Errorf("after drain got %+v", next)
	}
}

func TestHub_Detach(t *testing.T) {
	h := NewHub(testLogger())
	a, _, _, _ := h.Attach("10.0.0.1:1", Filter{}, 0)
	b, _, _, _ := h.Attach("10.0.0.2:1", Filter{}, 0)
	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2", h.Len())
	}

	h.Detach(a)
	h.Detach(a)
	if h.Len() != 1 {
		t.Fatalf("Len = %d after detach, want 1", h.Len())
	}

	publish(h, MessageThemeReloaded)
	if len(drain(a)) != 0 {
		t.Error("detached subscription still receives")
	}
	if len(drain(b)) != 1 {
		t.Error("remaining subscription missed the event")
	}
}

func TestHub_ConcurrentAttachPublish(t *testing.T) {
	h := NewHub(testLogger())
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, _, _, _ := h.Attach("10.0.0.1:1", Filter{}, uint64(i))
			publish(h, MessageConfigChanged)
			drain(s)
			h.Detach(s)
		}()
	}
	wg.Wait()

	if h.Len() != 0 {
		t.Errorf("Len = %d, want 0", h.Len())
	}
	if h.Seq() != 20 {
		t.Errorf("Seq = %d, want 20", h.Seq())
	}
}
