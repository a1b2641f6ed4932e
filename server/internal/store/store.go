package store

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/formcheck/formcheck/pkg/types"
)

// Entry is the latest state of one session. Entries are replaced, never
// modified, so callers may keep and read them without locking.
type Entry struct {
	SessionID string

	// Record is the most recent analyzed frame. It is nil until the session
	// delivers its first successful analysis.
	Record *types.AnalysisRecord

	// LastError is the message of the most recent error record, cleared by
	// the next successful analysis.
	LastError string

	Frames      uint64 // analyzed frames received
	ValidFrames uint64 // analyzed frames classified as a valid pose
	Errors      uint64 // error records received

	UpdatedAt time.Time
}

// ValidRatio returns the fraction of analyzed frames that were valid, or 0
// before the first frame.
func (e *Entry) ValidRatio() float64 {
	if e.Frames == 0 {
		return 0
	}
	return float64(e.ValidFrames) / float64(e.Frames)
}

// Store is a thread-safe in-memory session store, keyed by session_id.
// A background goroutine (Run) periodically evicts sessions that have not
// reported within the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put folds rec into its session's entry and returns the new entry.
// Records with an ErrorMessage only bump the error counter; the last
// analysis is kept. Callers must not modify rec after calling Put.
func (s *Store) Put(rec *types.AnalysisRecord) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Entry{SessionID: rec.SessionID}
	if prev, ok := s.data[rec.SessionID]; ok {
		*next = *prev
	}
	next.UpdatedAt = s.now()

	if rec.ErrorMessage != "" {
		next.Errors++
		next.LastError = rec.ErrorMessage
	} else {
		next.Record = rec
		next.LastError = ""
		next.Frames++
		if rec.Valid {
			next.ValidFrames++
		}
	}
	s.data[rec.SessionID] = next
	return next
}

// Get returns the Entry for the given session ID and a boolean indicating
// whether an entry was found. The entry may be stale if TTL has elapsed.
func (s *Store) Get(sessionID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[sessionID]
	return e, ok
}

// List returns all entries whose UpdatedAt is within the TTL, ordered by
// session ID. Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b *Entry) int { return strings.Compare(a.SessionID, b.SessionID) })
	return out
}

// TTL returns the configured retention for idle sessions.
func (s *Store) TTL() time.Duration { return s.ttl }

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := max(s.ttl/2, time.Second)
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted idle sessions", "count", n)
			}
		}
	}
}
