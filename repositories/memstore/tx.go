package memstore

import (
	"context"
	"sync"
)

// Tx serialises transactional blocks. It gives no rollback; tests that need
// atomicity assert on the guarded writes instead.
type Tx struct {
	mu sync.Mutex
}

func (t *Tx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
