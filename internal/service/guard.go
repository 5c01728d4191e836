package service

import "sync"

// Guard serializes the operations that rewrite shared tables: workbook
// import, sync pull and sync push. Exactly one may run at a time; the others
// fail fast with ErrSyncInProgress instead of queueing, so the UI can tell
// the operator immediately.
type Guard struct {
	mu sync.Mutex
}

func NewGuard() *Guard {
	return &Guard{}
}

func (g *Guard) TryLock() bool { return g.mu.TryLock() }
func (g *Guard) Unlock()       { g.mu.Unlock() }
