package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/LeventeLantos/campaign-manager/internal/send"
)

// Simulated is the deterministic in-process transport: every message is
// reported sent unless the test configures a failure for its phone.
type Simulated struct {
	mu          sync.Mutex
	unavailable bool
	failPhones  map[string]string
	delivered   []send.OutboundMessage
}

func NewSimulated() *Simulated {
	return &Simulated{failPhones: map[string]string{}}
}

func (s *Simulated) SetUnavailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = v
}

// FailPhone makes every delivery to phone fail with reason.
func (s *Simulated) FailPhone(phone, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPhones[phone] = reason
}

func (s *Simulated) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unavailable
}

func (s *Simulated) DeliverBatch(ctx context.Context, msgs []send.OutboundMessage) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]error, len(msgs))
	for i, m := range msgs {
		if reason, ok := s.failPhones[m.Phone]; ok {
			out[i] = errors.New(reason)
			continue
		}
		s.delivered = append(s.delivered, m)
	}
	return out
}

// Delivered returns a copy of everything reported sent so far.
func (s *Simulated) Delivered() []send.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]send.OutboundMessage(nil), s.delivered...)
}
