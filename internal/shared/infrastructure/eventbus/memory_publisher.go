package eventbus

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryPublisher keeps published envelopes in memory. Local mode and tests
// use it to observe lifecycle events without a broker.
type MemoryPublisher struct {
	mu        sync.Mutex
	envelopes []Envelope
	failWith  error
}

// NewMemoryPublisher creates an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// FailWith makes every subsequent Publish return err.
func (p *MemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = err
}

func (p *MemoryPublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failWith != nil {
		return p.failWith
	}

	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		envelope = Envelope{Payload: append(json.RawMessage(nil), payload...)}
	}
	envelope.RoutingKey = routingKey
	p.envelopes = append(p.envelopes, envelope)
	return nil
}

func (p *MemoryPublisher) Close() error {
	return nil
}

// Envelopes returns a copy of everything published so far.
func (p *MemoryPublisher) Envelopes() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Envelope(nil), p.envelopes...)
}

// RoutingKeys returns the routing keys in publish order.
func (p *MemoryPublisher) RoutingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, len(p.envelopes))
	for i, e := range p.envelopes {
		keys[i] = e.RoutingKey
	}
	return keys
}
