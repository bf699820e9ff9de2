package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/peercall/signaling/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeSender records everything the relay delivers to one endpoint.
type fakeSender struct {
	mu     sync.Mutex
	msgs   []models.SignalMessage
	full   bool // simulate a saturated send buffer
	closed bool
}

func (s *fakeSender) Send(msg models.SignalMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.msgs = append(s.msgs, msg)
	return true
}

func (s *fakeSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSender) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSender) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func (s *fakeSender) byType(t models.SignalType) []models.SignalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SignalMessage
	for _, m := range s.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeSender) countOf(t models.SignalType) int {
	return len(s.byType(t))
}

func (s *fakeSender) lastOf(t models.SignalType) (models.SignalMessage, bool) {
	msgs := s.byType(t)
	if len(msgs) == 0 {
		return models.SignalMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

func newTestRelay(t *testing.T) (*Relay, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Unix(0, 0)}
	return New(Options{LivenessTimeout: 10 * time.Second, Clock: clk}), clk
}

func mustJoin(t *testing.T, r *Relay, id string) *fakeSender {
	t.Helper()
	s := &fakeSender{}
	if err := r.Join(id, s); err != nil {
		t.Fatalf("Join(%s): %v", id, err)
	}
	return s
}
