// Package messagestore is a single-writer, multi-reader store of chat
// messages backed by SQLite. Mutations are fire-and-forget: they are
// queued, applied in order on one worker goroutine, and every applied
// write triggers a coalesced reload of the full ordered message list,
// which is republished to all observers.
package messagestore

import (
	"errors"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/drakeet/messagestore/internal/bus"
	"github.com/drakeet/messagestore/internal/lock"
	"github.com/drakeet/messagestore/internal/sequencer"
	"github.com/drakeet/messagestore/internal/snapshot"
	"github.com/drakeet/messagestore/internal/store"
	"github.com/drakeet/messagestore/message"
)

const dbFileName = "messages.db"

// WriteStats counts mutation outcomes since the store was opened.
// Failed writes are dropped silently, so these counters are the only
// way to notice them.
type WriteStats struct {
	Applied uint64
	Failed  uint64
}

// Store is the message store. Construct exactly one per process with
// Open, share the reference, and Close it at shutdown.
type Store struct {
	cfg    Config
	logger *zap.Logger
	lk     *lock.Lock
	db     *store.DB
	bus    *bus.Bus
	seq    *sequencer.Sequencer
	repo   *snapshot.Repository

	closeOnce sync.Once
	closeErr  error
}

// Open acquires the store directory lock, opens and migrates the
// database, and starts the write worker. A nil logger disables logging.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	cfg = cfg.withDefaults()
	if cfg.CurrentUserID == "" {
		return nil, errors.New("messagestore: CurrentUserID is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	lk, err := lock.Acquire(cfg.Dir)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(filepath.Join(cfg.Dir, dbFileName))
	if err != nil {
		_ = lk.Release()
		return nil, err
	}
	version, changed, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		_ = lk.Release()
		return nil, err
	}
	if changed {
		logger.Info("migrations applied", zap.Uint("version", version))
	}

	b := bus.New()
	seq := sequencer.New(db, b, logger)
	repo := snapshot.New(db, b, cfg.CurrentUserID, cfg.EventBuffer, logger)
	seq.Start()
	logger.Info("message store opened", zap.String("dir", cfg.Dir))

	return &Store{
		cfg:    cfg,
		logger: logger,
		lk:     lk,
		db:     db,
		bus:    b,
		seq:    seq,
		repo:   repo,
	}, nil
}

// Insert queues m for insertion. Invalid messages are logged and
// dropped before enqueueing; storage failures are not reported back.
func (s *Store) Insert(m *message.Message) {
	if err := m.Validate(); err != nil {
		s.logger.Warn("insert rejected", zap.Error(err))
		return
	}
	s.seq.Enqueue(sequencer.Insert(cloned(m)))
}

// Update queues a rewrite of the row with m's id.
func (s *Store) Update(m *message.Message) {
	if err := m.Validate(); err != nil {
		s.logger.Warn("update rejected", zap.Error(err))
		return
	}
	s.seq.Enqueue(sequencer.Update(cloned(m)))
}

// Delete queues removal of m, keyed by its id. Like all mutations it
// reports nothing: a failed delete simply leaves m in future snapshots.
func (s *Store) Delete(m *message.Message) {
	if m == nil || m.ID == "" {
		s.logger.Warn("delete rejected, message has no id")
		return
	}
	s.seq.Enqueue(sequencer.Delete(m.ID))
}

// Clear queues removal of every message.
func (s *Store) Clear() {
	s.seq.Enqueue(sequencer.Clear())
}

// Observe subscribes to snapshots of the full ordered message list. The
// first observer activates reloading; detaching the last one suspends
// it. The returned channel conflates to the newest snapshot.
func (s *Store) Observe() (<-chan []message.Message, func()) {
	return s.repo.Observe()
}

// Snapshot returns the last loaded snapshot without subscribing.
func (s *Store) Snapshot() []message.Message {
	return s.repo.Snapshot()
}

// Stats returns the applied/failed write counters.
func (s *Store) Stats() WriteStats {
	st := s.seq.Stats()
	return WriteStats{Applied: st.Applied, Failed: st.Failed}
}

// Close drains queued writes, stops the worker, closes the database and
// releases the directory lock. It is idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.seq.Stop()
		s.closeErr = errors.Join(s.db.Close(), s.lk.Release())
		s.logger.Info("message store closed")
	})
	return s.closeErr
}

// cloned takes ownership of the message at enqueue time: later caller
// mutations must not affect the queued request.
func cloned(m *message.Message) *message.Message {
	c := *m
	return &c
}
