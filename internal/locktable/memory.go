package locktable

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/monitoring"
)

// MemoryTable keeps locks in process memory behind a single mutex. Each
// operation is O(1) apart from the sweep; events are published after the
// mutex is released so a slow subscriber never stalls lock churn.
type MemoryTable struct {
	mu        sync.Mutex
	locks     map[model.SeatKey]model.SeatLock
	bySession map[string]map[model.SeatKey]struct{}

	ttl time.Duration
	now func() time.Time
	pub Publisher
}

// NewMemoryTable returns an empty table. pub may be nil.
func NewMemoryTable(pub Publisher, opts ...Option) *MemoryTable {
	o := buildOptions(opts)
	if pub == nil {
		pub = nopPublisher{}
	}
	return &MemoryTable{
		locks:     make(map[model.SeatKey]model.SeatLock),
		bySession: make(map[string]map[model.SeatKey]struct{}),
		ttl:       o.ttl,
		now:       o.now,
		pub:       pub,
	}
}

func (t *MemoryTable) Acquire(ctx context.Context, showID, seatNumber, userID, sessionID string) (LockResult, error) {
	key := model.SeatKey{ShowID: showID, SeatNumber: seatNumber}

	t.mu.Lock()
	now := t.now()
	cur, exists := t.locks[key]
	if exists && !cur.Expired(now) && !cur.HeldBy(userID, sessionID) {
		t.mu.Unlock()
		monitoring.SeatLockOperation("acquire", "held_by_other")
		return HeldByOther, nil
	}
	lock := model.SeatLock{
		Key:        key,
		UserID:     userID,
		SessionID:  sessionID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(t.ttl),
	}
	if exists {
		if cur.HeldBy(userID, sessionID) && !cur.Expired(now) {
			lock.AcquiredAt = cur.AcquiredAt
		}
		t.unindex(cur)
	}
	t.locks[key] = lock
	t.index(lock)
	t.mu.Unlock()

	monitoring.SeatLockOperation("acquire", "granted")
	t.pub.Publish(ctx, model.Selected(key, userID))
	return Granted, nil
}

func (t *MemoryTable) Release(ctx context.Context, showID, seatNumber string) (bool, error) {
	key := model.SeatKey{ShowID: showID, SeatNumber: seatNumber}

	t.mu.Lock()
	cur, ok := t.locks[key]
	if ok {
		t.remove(cur)
	}
	now := t.now()
	t.mu.Unlock()

	if !ok {
		return false, nil
	}
	monitoring.SeatLockOperation("release", "released")
	monitoring.SeatLockReleased(now.Sub(cur.AcquiredAt))
	t.pub.Publish(ctx, model.Released(key))
	return true, nil
}

func (t *MemoryTable) ReleaseAllFor(ctx context.Context, sessionID string) ([]model.SeatKey, error) {
	t.mu.Lock()
	now := t.now()
	var released []model.SeatLock
	for key := range t.bySession[sessionID] {
		released = append(released, t.locks[key])
	}
	for _, l := range released {
		t.remove(l)
	}
	t.mu.Unlock()

	keys := sortedKeys(released, now, "release_session")
	publishReleased(ctx, t.pub, keys)
	return keys, nil
}

func (t *MemoryTable) SweepExpired(ctx context.Context) ([]model.SeatKey, error) {
	t.mu.Lock()
	now := t.now()
	var expired []model.SeatLock
	for _, l := range t.locks {
		if l.Expired(now) {
			expired = append(expired, l)
		}
	}
	for _, l := range expired {
		t.remove(l)
	}
	t.mu.Unlock()

	keys := sortedKeys(expired, now, "sweep")
	publishReleased(ctx, t.pub, keys)
	return keys, nil
}

func (t *MemoryTable) Get(_ context.Context, showID, seatNumber string) (*model.SeatLock, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[model.SeatKey{ShowID: showID, SeatNumber: seatNumber}]
	if !ok || l.Expired(t.now()) {
		return nil, nil
	}
	return &l, nil
}

func (t *MemoryTable) Locks(_ context.Context, showID string, seats []string) (map[string]model.SeatLock, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	out := make(map[string]model.SeatLock)
	for _, seat := range seats {
		if l, ok := t.locks[model.SeatKey{ShowID: showID, SeatNumber: seat}]; ok && !l.Expired(now) {
			out[seat] = l
		}
	}
	return out, nil
}

func (t *MemoryTable) SessionLocks(_ context.Context, sessionID string) ([]model.SeatLock, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	out := make([]model.SeatLock, 0, len(t.bySession[sessionID]))
	for key := range t.bySession[sessionID] {
		if l, ok := t.locks[key]; ok && !l.Expired(now) {
			out = append(out, l)
		}
	}
	return out, nil
}

// index, unindex and remove must be called with mu held.
func (t *MemoryTable) index(l model.SeatLock) {
	set, ok := t.bySession[l.SessionID]
	if !ok {
		set = make(map[model.SeatKey]struct{})
		t.bySession[l.SessionID] = set
	}
	set[l.Key] = struct{}{}
}

func (t *MemoryTable) unindex(l model.SeatLock) {
	if set, ok := t.bySession[l.SessionID]; ok {
		delete(set, l.Key)
		if len(set) == 0 {
			delete(t.bySession, l.SessionID)
		}
	}
}

func (t *MemoryTable) remove(l model.SeatLock) {
	delete(t.locks, l.Key)
	t.unindex(l)
}

func sortedKeys(locks []model.SeatLock, now time.Time, op string) []model.SeatKey {
	keys := make([]model.SeatKey, 0, len(locks))
	for _, l := range locks {
		keys = append(keys, l.Key)
		monitoring.SeatLockOperation(op, "released")
		held := now.Sub(l.AcquiredAt)
		if l.ExpiresAt.Before(now) {
			held = l.ExpiresAt.Sub(l.AcquiredAt)
		}
		monitoring.SeatLockReleased(held)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ShowID != keys[j].ShowID {
			return keys[i].ShowID < keys[j].ShowID
		}
		return keys[i].SeatNumber < keys[j].SeatNumber
	})
	return keys
}
