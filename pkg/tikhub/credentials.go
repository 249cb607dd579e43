package tikhub

import (
	"errors"
	"sync"
)

// ErrCredentialsExhausted is returned when every key in the pool has hit its
// quota.
var ErrCredentialsExhausted = errors.New("all API credentials exhausted")

// Pool holds an ordered set of API keys: the primary first, then backups in
// declared order. Exhausted keys are skipped but never removed; exhaustion is
// permanent for the lifetime of the process, since a quota window is assumed
// not to refresh within one run.
type Pool struct {
	mu        sync.Mutex
	keys      []string
	exhausted map[string]bool
}

// NewPool creates a credential pool from a primary key and optional backups.
// Empty keys are dropped.
func NewPool(primary string, backups ...string) *Pool {
	keys := make([]string, 0, 1+len(backups))
	if primary != "" {
		keys = append(keys, primary)
	}
	for _, k := range backups {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return &Pool{
		keys:      keys,
		exhausted: make(map[string]bool),
	}
}

// Current returns the first non-exhausted key in order, or
// ErrCredentialsExhausted if none remain.
func (p *Pool) Current() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, k := range p.keys {
		if !p.exhausted[k] {
			return k, nil
		}
	}
	return "", ErrCredentialsExhausted
}

// MarkExhausted flags the given key as exhausted. Idempotent; unknown keys
// are ignored.
func (p *Pool) MarkExhausted(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, k := range p.keys {
		if k == key {
			p.exhausted[k] = true
			return
		}
	}
}

// Size returns the total number of keys in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Remaining returns the number of keys that have not been exhausted.
func (p *Pool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, k := range p.keys {
		if !p.exhausted[k] {
			n++
		}
	}
	return n
}
