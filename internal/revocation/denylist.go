package revocation

import (
	"context"
	"sync"
	"time"
)

// Denylist records token ids that were logged out before they expired.
type Denylist interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Health(ctx context.Context) error
	Close() error
}

type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (d *MemoryDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if !expiresAt.After(now) {
		return nil
	}

	d.entries[jti] = expiresAt
	d.purge(now)
	return nil
}

func (d *MemoryDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	expiresAt, ok := d.entries[jti]
	if !ok {
		return false, nil
	}
	if !expiresAt.After(d.now()) {
		delete(d.entries, jti)
		return false, nil
	}
	return true, nil
}

// purge drops entries whose tokens have expired anyway. Callers hold mu.
func (d *MemoryDenylist) purge(now time.Time) {
	for jti, expiresAt := range d.entries {
		if !expiresAt.After(now) {
			delete(d.entries, jti)
		}
	}
}

func (d *MemoryDenylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *MemoryDenylist) Health(ctx context.Context) error {
	return nil
}

func (d *MemoryDenylist) Close() error {
	return nil
}
