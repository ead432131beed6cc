package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// LockKey names a resource whose guarded writes must be serialized.
type LockKey string

func RoomDayKey(roomID int, day time.Weekday) LockKey {
	return LockKey(fmt.Sprintf("room:%d:%d", roomID, day))
}

func TutorDayKey(tutorID int, day time.Weekday) LockKey {
	return LockKey(fmt.Sprintf("tutor:%d:%d", tutorID, day))
}

func SessionKey(sessionID int) LockKey {
	return LockKey(fmt.Sprintf("session:%d", sessionID))
}

// SortKeys returns the distinct keys in acquisition order.
func SortKeys(keys []LockKey) []LockKey {
	seen := make(map[LockKey]struct{}, len(keys))
	sorted := make([]LockKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}

type keyedLock struct {
	sem  *semaphore.Weighted
	refs int
}

// KeyedLocker hands out one exclusive semaphore per LockKey.
// Keys are always acquired in sorted order so that overlapping key sets cannot deadlock.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[LockKey]*keyedLock
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[LockKey]*keyedLock)}
}

func (l *KeyedLocker) ref(key LockKey) *keyedLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl, ok := l.locks[key]
	if !ok {
		kl = &keyedLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *KeyedLocker) unref(key LockKey) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if kl, ok := l.locks[key]; ok {
		kl.refs--
		if kl.refs <= 0 {
			delete(l.locks, key)
		}
	}
}

// Lock blocks until every key is held or ctx is done.
// The returned func releases every held key.
func (l *KeyedLocker) Lock(ctx context.Context, keys ...LockKey) (func(), error) {
	keys = SortKeys(keys)
	held := make([]*keyedLock, 0, len(keys))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].sem.Release(1)
			l.unref(keys[i])
		}
	}

	for _, key := range keys {
		kl := l.ref(key)
		if err := kl.sem.Acquire(ctx, 1); err != nil {
			l.unref(key)
			release()
			return nil, err
		}
		held = append(held, kl)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
