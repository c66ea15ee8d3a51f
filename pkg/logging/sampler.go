package logging

import (
	"log/slog"
	"sync"
)

// Sampler keeps repeated warnings (same malformed document on every page view,
// a broker flapping) from flooding the log. For each key it lets through the
// first occurrence and then every Nth one.
type Sampler struct {
	mu     sync.Mutex
	counts map[string]int
	every  int
}

// NewSampler returns a Sampler that logs every Nth occurrence. n < 1 means 10.
func NewSampler(n int) *Sampler {
	if n < 1 {
		n = 10
	}
	return &Sampler{
		counts: make(map[string]int),
		every:  n,
	}
}

// Allow records an occurrence of key and reports whether it should be logged,
// along with the number of occurrences seen so far.
func (s *Sampler) Allow(key string) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[key]++
	n := s.counts[key]
	return n == 1 || n%s.every == 0, n
}

// Warn logs msg at warn level if the occurrence for key is sampled in.
func (s *Sampler) Warn(key, msg string, args ...any) {
	ok, n := s.Allow(key)
	if !ok {
		return
	}
	slog.Warn(msg, append(args, "occurrences", n)...)
}

// Count returns the occurrences recorded for key.
func (s *Sampler) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

// Forget drops the counter for key.
func (s *Sampler) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, key)
}
