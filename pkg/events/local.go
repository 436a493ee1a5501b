package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/diagnosis/streetink-bookings/pkg/idx"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

// LocalBus delivers events in-process. It stands in for NATS when no broker
// is configured and in tests. Each queue group receives a message once;
// plain subscribers all receive it.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[string][]func(*Message)
	queues map[string]map[string]*queueGroup
	wg     sync.WaitGroup
	async  bool
	closed bool
}

type queueGroup struct {
	handlers []func(*Message)
	next     int
}

// NewLocalBus returns a bus that calls handlers on the publishing goroutine
// unless async is set.
func NewLocalBus(async bool) *LocalBus {
	return &LocalBus{
		subs:   make(map[string][]func(*Message)),
		queues: make(map[string]map[string]*queueGroup),
		async:  async,
	}
}

func (b *LocalBus) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus closed")
	}
	targets := append([]func(*Message){}, b.subs[subject]...)
	for _, g := range b.queues[subject] {
		targets = append(targets, g.handlers[g.next%len(g.handlers)])
		g.next++
	}
	b.mu.Unlock()

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "subscribers", len(targets))

	for _, h := range targets {
		msg := &Message{Subject: subject, Data: payload, Timestamp: time.Now(), ID: idx.New().String()}
		if !b.async {
			h(msg)
			continue
		}
		b.wg.Add(1)
		go func(h func(*Message)) {
			defer b.wg.Done()
			h(msg)
		}(h)
	}
	return nil
}

func (b *LocalBus) Subscribe(subject string, handler func(msg *Message)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[subject] = append(b.subs[subject], handler)
	return nil
}

func (b *LocalBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	groups, ok := b.queues[subject]
	if !ok {
		groups = make(map[string]*queueGroup)
		b.queues[subject] = groups
	}
	g, ok := groups[queue]
	if !ok {
		g = &queueGroup{}
		groups[queue] = g
	}
	g.handlers = append(g.handlers, handler)
	return nil
}

// Close waits for in-flight async handlers.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

var (
	_ EventBus = (*LocalBus)(nil)
	_ EventBus = (*NATSEventBus)(nil)
)
