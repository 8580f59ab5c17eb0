package session

import "sync"

// ParsingSession owns one tailed file's Cache behind a read/write lock:
// the tailing reader applies events under the write lock in strict file
// order, and queries (session info, current metrics) take the read
// lock.
type ParsingSession struct {
	mu         sync.RWMutex
	Path       string
	ByteOffset int64
	Cache      *Cache
}

// NewParsingSession constructs a session for the file at path.
func NewParsingSession(path string) *ParsingSession {
	return &ParsingSession{Path: path, Cache: NewCache()}
}

// Apply runs fn with the write lock held. Callers use this to process one
// CombatEvent at a time, preserving the file's byte order.
func (s *ParsingSession) Apply(fn func(*Cache)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.Cache)
}

// View runs fn with the read lock held, for queries that must not block
// behind event application for longer than necessary.
func (s *ParsingSession) View(fn func(*Cache)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.Cache)
}

// SetByteOffset records the tail position to resume from, guarded by the
// same write lock as event application so a checkpoint write never
// observes a torn (cache, offset) pair.
func (s *ParsingSession) SetByteOffset(offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ByteOffset = offset
}

// Offset reads the current byte offset under the read lock.
func (s *ParsingSession) Offset() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ByteOffset
}
