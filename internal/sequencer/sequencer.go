// Package sequencer serializes all storage mutations through one
// unbounded FIFO queue drained by a single worker goroutine.
package sequencer

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/drakeet/messagestore/internal/bus"
	"github.com/drakeet/messagestore/message"
)

// Gateway is the slice of the storage gateway the worker needs.
type Gateway interface {
	InsertMessage(m *message.Message) error
	UpdateMessage(m *message.Message) error
	DeleteMessage(id string) error
	DeleteAll() error
}

// Stats counts mutation outcomes since the sequencer started. Failed
// mutations are dropped, so this counter is the only trace they leave.
type Stats struct {
	Applied uint64
	Failed  uint64
}

// Sequencer applies mutations in exactly the order they were enqueued.
// On success it publishes a store.changed event; on failure it drops the
// mutation (fire-and-forget: callers get no signal either way).
type Sequencer struct {
	gw     Gateway
	bus    *bus.Bus
	logger *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Mutation
	started bool
	closed  bool

	done    chan struct{}
	applied atomic.Uint64
	failed  atomic.Uint64
}

// New creates a sequencer. Call Start before enqueueing.
func New(gw Gateway, b *bus.Bus, logger *zap.Logger) *Sequencer {
	s := &Sequencer{
		gw:     gw,
		bus:    b,
		logger: logger,
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the worker goroutine. Calling it again is a no-op.
func (s *Sequencer) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.worker()
}

// Stop closes the queue, lets the worker drain what is already queued,
// and waits for it to exit. Enqueues after Stop are dropped. Stopping a
// sequencer that was never started just closes the queue.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	s.closed = true
	started := s.started
	s.cond.Broadcast()
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

// Enqueue appends m to the queue and returns immediately. It never
// blocks and never rejects for capacity; it is safe to call from any
// number of goroutines.
func (s *Sequencer) Enqueue(m Mutation) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("mutation dropped, sequencer stopped",
			zap.Stringer("op", m.Op), zap.String("message_id", m.messageID()))
		return
	}
	s.queue = append(s.queue, m)
	s.cond.Signal()
	s.mu.Unlock()
}

// Stats returns the applied/failed counters.
func (s *Sequencer) Stats() Stats {
	return Stats{Applied: s.applied.Load(), Failed: s.failed.Load()}
}

func (s *Sequencer) worker() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		m := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.apply(m)
	}
}

func (s *Sequencer) apply(m Mutation) {
	var err error
	switch m.Op {
	case OpInsert:
		err = s.gw.InsertMessage(m.Message)
	case OpUpdate:
		err = s.gw.UpdateMessage(m.Message)
	case OpDelete:
		err = s.gw.DeleteMessage(m.ID)
	case OpClear:
		err = s.gw.DeleteAll()
	}

	if err != nil {
		s.failed.Add(1)
		s.logger.Error("mutation failed",
			zap.Error(err), zap.Stringer("op", m.Op), zap.String("message_id", m.messageID()))
		s.bus.Publish(bus.Event{
			Kind:      bus.KindWriteFailed,
			Op:        m.Op.String(),
			MessageID: m.messageID(),
			Timestamp: time.Now(),
		})
		return
	}

	s.applied.Add(1)
	s.bus.Publish(bus.Event{
		Kind:      bus.KindChanged,
		Op:        m.Op.String(),
		MessageID: m.messageID(),
		Timestamp: time.Now(),
	})
}
