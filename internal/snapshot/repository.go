// Package snapshot keeps an always-current, ordered snapshot of the
// full messages table and republishes it to observers after every
// applied write.
package snapshot

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/drakeet/messagestore/internal/bus"
	"github.com/drakeet/messagestore/message"
)

// Loader is the slice of the storage gateway the repository needs.
type Loader interface {
	ListMessages(ctx context.Context, currentUserID string) ([]message.Message, error)
}

// Repository holds the latest good snapshot and reloads it whenever the
// sequencer reports an applied write. Reloads are lazy (only while at
// least one observer is attached), single-flight, and coalesced: any
// number of change notifications arriving during a reload schedule at
// most one follow-up reload.
type Repository struct {
	loader        Loader
	bus           *bus.Bus
	logger        *zap.Logger
	currentUserID string
	eventBuffer   int

	mu         sync.Mutex
	snapshot   []message.Message
	observers  map[int]chan []message.Message
	nextID     int
	generation int
	cancel     context.CancelFunc
}

// New creates an inactive repository with an empty snapshot.
func New(loader Loader, b *bus.Bus, currentUserID string, eventBuffer int, logger *zap.Logger) *Repository {
	if eventBuffer <= 0 {
		eventBuffer = 64
	}
	return &Repository{
		loader:        loader,
		bus:           b,
		logger:        logger,
		currentUserID: currentUserID,
		eventBuffer:   eventBuffer,
		snapshot:      []message.Message{},
		observers:     make(map[int]chan []message.Message),
	}
}

// Snapshot returns the last good snapshot. Callers must not modify it.
func (r *Repository) Snapshot() []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// Observe registers an observer and returns its delivery channel plus a
// detach function. The channel conflates: it always carries the newest
// snapshot, and a slow observer skips intermediate ones instead of
// blocking the publisher. The first observer activates the reload loop;
// detaching the last one cancels it, interrupting any in-flight reload.
func (r *Repository) Observe() (<-chan []message.Message, func()) {
	ch := make(chan []message.Message, 1)

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.observers[id] = ch
	ch <- r.snapshot
	if len(r.observers) == 1 {
		r.activate()
	}
	r.mu.Unlock()

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.observers[id]; !ok {
			return
		}
		delete(r.observers, id)
		if len(r.observers) == 0 && r.cancel != nil {
			r.cancel()
			r.cancel = nil
		}
	}
}

// activate starts a fresh reload loop. Caller holds r.mu.
func (r *Repository) activate() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.generation++
	events, unsub := r.bus.Subscribe(bus.KindChanged, r.eventBuffer)
	go r.loop(ctx, r.generation, events, unsub)
}

func (r *Repository) loop(ctx context.Context, gen int, events <-chan bus.Event, unsub func()) {
	defer unsub()

	// dirty has one slot: it is the coalescing point for change
	// notifications that arrive while a reload is in flight. Seeding it
	// makes activation reload immediately.
	dirty := make(chan struct{}, 1)
	dirty <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-events:
			select {
			case dirty <- struct{}{}:
			default:
			}
		case <-dirty:
			// Notifications that queued up behind this token are covered
			// by the reload below; fold them in so a burst costs one
			// reload, not one per notification.
			drainPending(events)
			r.reload(ctx, gen)
		}
	}
}

func drainPending(events <-chan bus.Event) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

func (r *Repository) reload(ctx context.Context, gen int) {
	if ctx.Err() != nil {
		return
	}
	msgs, err := r.loader.ListMessages(ctx, r.currentUserID)
	if err != nil {
		if ctx.Err() != nil {
			// Interrupted by the last observer detaching.
			return
		}
		r.logger.Warn("reload failed, keeping previous snapshot", zap.Error(err))
		return
	}

	r.mu.Lock()
	if gen != r.generation {
		// A newer activation owns the snapshot now; discard this result.
		r.mu.Unlock()
		return
	}
	r.snapshot = msgs
	chans := make([]chan []message.Message, 0, len(r.observers))
	for _, ch := range r.observers {
		chans = append(chans, ch)
	}
	r.mu.Unlock()

	for _, ch := range chans {
		conflate(ch, msgs)
	}
}

// conflate delivers snap, displacing a stale undelivered snapshot if the
// observer has not kept up.
func conflate(ch chan []message.Message, snap []message.Message) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
