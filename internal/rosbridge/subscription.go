package rosbridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/observability"
)

type pendingMsg struct {
	payload []byte
	at      time.Time
}

// receiveStamper lets parameter types record the receive time when the
// message carried none.
type receiveStamper[P any] interface {
	WithReceivedAt(at time.Time) P
}

type subscription[P any, M Message] struct {
	bridge  *Bridge
	info    Binding
	decode  func([]byte) (M, error)
	convert func(M) (P, error)

	mu         sync.Mutex
	pending    []pendingMsg
	value      P
	received   uint64
	converted  uint64
	dropped    uint64
	lastUpdate time.Time
}

func (s *subscription[P, M]) binding() Binding { return s.info }

func (s *subscription[P, M]) read() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

func (s *subscription[P, M]) deliver(payload []byte, at time.Time) {
	limit := int(s.bridge.queueSize.Load())
	s.mu.Lock()
	s.received++
	full := len(s.pending) >= limit
	if full {
		s.pending = s.pending[1:]
		s.dropped++
	}
	s.pending = append(s.pending, pendingMsg{payload: payload, at: at})
	s.mu.Unlock()
	observability.MessageReceived(s.info.Topic)
	if full {
		observability.MessageDropped(s.info.Topic, "queue_full")
	}
}

func (s *subscription[P, M]) drain() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, pm := range pending {
		msg, err := s.decode(pm.payload)
		if err != nil {
			s.drop("decode", err)
			continue
		}
		p, err := s.convert(msg)
		if err != nil {
			s.drop("convert", err)
			continue
		}
		if st, ok := any(p).(receiveStamper[P]); ok {
			p = st.WithReceivedAt(pm.at)
		}
		s.mu.Lock()
		s.value = p
		s.converted++
		s.lastUpdate = pm.at
		s.mu.Unlock()
		observability.CommandUpdated(s.info.Interface, s.info.Command)
	}
}

func (s *subscription[P, M]) drop(reason string, err error) {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
	observability.MessageDropped(s.info.Topic, reason)
	slog.Debug("bridge message dropped", "topic", s.info.Topic, "reason", reason, "error", err)
}

func (s *subscription[P, M]) stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Binding:    s.info,
		Received:   s.received,
		Converted:  s.converted,
		Dropped:    s.dropped,
		LastUpdate: s.lastUpdate,
	}
}
