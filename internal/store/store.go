// Package store holds the in-memory session and tool-set records behind
// the agentic workflow. Both record kinds share the same sliding TTL
// discipline: every successful read refreshes the access time, and a record
// past its TTL is logically gone even before it is physically swept.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionTTL is the sliding expiry window for sessions and tool sets.
	SessionTTL = 30 * time.Minute

	// sweepInterval bounds how often TTL-sensitive operations run a full
	// sweep. Individual reads re-check their own record's TTL regardless,
	// so a stale entry can sit in the map but never be returned.
	sweepInterval = 5 * time.Minute
)

// Store owns all session and tool-set records. It is safe for concurrent
// use; every operation runs to completion under the store lock.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	toolSets  map[string]*ToolSet
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the default sliding expiry window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithNowFunc sets a custom time source. For testing.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		toolSets: make(map[string]*ToolSet),
		ttl:      SessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.now()
	return s
}

// TTL returns the sliding expiry window.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// CreateSession allocates a new session bound to modelID. A non-empty
// systemPrompt seeds the message log with one system message. The caller
// guarantees a non-empty modelID; no validation is performed here.
func (s *Store) CreateSession(modelID string, tools []ToolSchema, systemPrompt string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeSweepLocked()

	now := s.now()
	sess := &Session{
		ID:             uuid.NewString(),
		ModelID:        modelID,
		Tools:          append([]ToolSchema(nil), tools...),
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	if systemPrompt != "" {
		sess.Messages = append(sess.Messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	s.sessions[sess.ID] = sess
	return copySession(sess)
}

// GetSession returns the session for id, or false if the id is unknown or
// the session has expired. An expired record is deleted on the way out.
// A successful read refreshes the access time (sliding window).
func (s *Store) GetSession(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeSweepLocked()

	sess, ok := s.liveSessionLocked(id)
	if !ok {
		return nil, false
	}
	return copySession(sess), true
}

// GetSessionInfo mirrors GetSession's lookup semantics but projects to a
// summary without the message log. TTLRemainingMS is computed after the
// access refresh, so immediately after a read it is approximately the TTL.
func (s *Store) GetSessionInfo(id string) (SessionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeSweepLocked()

	sess, ok := s.liveSessionLocked(id)
	if !ok {
		return SessionInfo{}, false
	}
	remaining := s.ttl - s.now().Sub(sess.LastAccessedAt)
	return SessionInfo{
		ID:             sess.ID,
		ModelID:        sess.ModelID,
		MessageCount:   len(sess.Messages),
		ToolCount:      len(sess.Tools),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		TTLRemainingMS: remaining.Milliseconds(),
	}, true
}

// AppendMessage pushes msg to the end of the session's log. It returns
// false without mutation when the session is unknown or expired.
func (s *Store) AppendMessage(id string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeSweepLocked()

	sess, ok := s.liveSessionLocked(id)
	if !ok {
		return false
	}
	sess.Messages = append(sess.Messages, msg)
	return true
}

// DeleteSession removes the record unconditionally and reports whether an
// entry was physically present. No expiry check: deleting an
// expired-but-unswept record still reports true.
func (s *Store) DeleteSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// ListSessions returns the ids of all physical entries, sorted. It sweeps
// first, so the result normally contains only live sessions.
func (s *Store) ListSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SessionCount returns the number of physical session entries after an
// opportunistic sweep.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.sessions)
}

// RegisterToolSet stores a reusable tool bundle. An empty id generates one.
// A supplied id that already exists is fully overwritten: tools replaced,
// timestamps reset.
func (s *Store) RegisterToolSet(tools []ToolSchema, id string) *ToolSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeSweepLocked()

	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	ts := &ToolSet{
		ID:             id,
		Tools:          append([]ToolSchema(nil), tools...),
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	s.toolSets[id] = ts
	return copyToolSet(ts)
}

// GetToolSet returns the tool set for id with the same liveness and
// refresh semantics as GetSession.
func (s *Store) GetToolSet(id string) (*ToolSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeSweepLocked()

	ts, ok := s.toolSets[id]
	if !ok {
		return nil, false
	}
	if s.expiredLocked(ts.LastAccessedAt) {
		delete(s.toolSets, id)
		return nil, false
	}
	ts.LastAccessedAt = s.now()
	return copyToolSet(ts), true
}

// DeleteToolSet removes the record unconditionally, mirroring DeleteSession.
func (s *Store) DeleteToolSet(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.toolSets[id]
	delete(s.toolSets, id)
	return ok
}

// ListToolSets returns the ids of all physical tool-set entries, sorted.
func (s *Store) ListToolSets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	ids := make([]string, 0, len(s.toolSets))
	for id := range s.toolSets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ToolSetCount returns the number of physical tool-set entries after an
// opportunistic sweep.
func (s *Store) ToolSetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.toolSets)
}

// CleanupExpired removes every session and tool set past its TTL and
// returns the total number of records removed across both stores.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

// Reset drops all records. Exposed for test harnesses only.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*Session)
	s.toolSets = make(map[string]*ToolSet)
}

// liveSessionLocked looks up id, expiring the record as a side effect when
// its TTL has passed, and refreshes the access time on success.
func (s *Store) liveSessionLocked(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expiredLocked(sess.LastAccessedAt) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.LastAccessedAt = s.now()
	return sess, true
}

func (s *Store) expiredLocked(lastAccessed time.Time) bool {
	return s.now().Sub(lastAccessed) > s.ttl
}

// maybeSweepLocked runs a full sweep when more than sweepInterval has
// elapsed since the last one. Amortizes cleanup without a background timer.
func (s *Store) maybeSweepLocked() {
	if s.now().Sub(s.lastSweep) > sweepInterval {
		s.sweepLocked()
	}
}

func (s *Store) sweepLocked() int {
	removed := 0
	for id, sess := range s.sessions {
		if s.expiredLocked(sess.LastAccessedAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	for id, ts := range s.toolSets {
		if s.expiredLocked(ts.LastAccessedAt) {
			delete(s.toolSets, id)
			removed++
		}
	}
	s.lastSweep = s.now()
	return removed
}

// copySession clones the record so callers cannot mutate store state
// outside AppendMessage. Tool parameter maps are shared; they are treated
// as immutable after registration.
func copySession(sess *Session) *Session {
	out := *sess
	out.Messages = append([]Message(nil), sess.Messages...)
	out.Tools = append([]ToolSchema(nil), sess.Tools...)
	return &out
}

func copyToolSet(ts *ToolSet) *ToolSet {
	out := *ts
	out.Tools = append([]ToolSchema(nil), ts.Tools...)
	return &out
}
