package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker holds leases in process. It only excludes runs within one instance and is
// meant for single-node deployments and tests.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	now    func() time.Time
}

type memoryLease struct {
	owner   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: map[string]memoryLease{}, now: time.Now}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, job string, ttl time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.leases[job]; ok && now.Before(cur.expires) {
		return nil, false, nil
	}
	owner := uuid.NewString()
	l.leases[job] = memoryLease{owner: owner, expires: now.Add(ttl)}
	return &memoryHandle{locker: l, job: job, owner: owner}, true, nil
}

type memoryHandle struct {
	locker *MemoryLocker
	job    string
	owner  string
}

func (h *memoryHandle) Release(context.Context) error {
	h.locker.mu.Lock()
	defer h.locker.mu.Unlock()
	if cur, ok := h.locker.leases[h.job]; ok && cur.owner == h.owner {
		delete(h.locker.leases, h.job)
	}
	return nil
}
