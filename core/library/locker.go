package library

import (
	"context"
	"sort"
	"sync"
)

// Locker serializes destructive work on one track name.
type Locker interface {
	Lock(ctx context.Context, name string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker with one mutex per track name.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until name is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, name string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[name]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[name] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(name, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(name, e)
		})
	}, nil
}

func (k *KeyedMutex) release(name string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, name)
	}
}

// LockAll takes the locks of several names in sorted order, so two callers
// locking overlapping sets cannot deadlock. Duplicates are locked once.
func LockAll(ctx context.Context, l Locker, names ...string) (func(), error) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var unlocks []func()
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for i, name := range sorted {
		if i > 0 && sorted[i-1] == name {
			continue
		}
		unlock, err := l.Lock(ctx, name)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}
