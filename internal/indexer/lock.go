package indexer

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// IndexLock is a non-blocking lock built on a CAS
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire takes the lock if it is free and reports whether it did
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// CampaignLocks holds one IndexLock per campaign so that indexing one
// campaign never blocks another
type CampaignLocks struct {
	locks sync.Map // uuid.UUID -> *IndexLock
}

// TryAcquire takes the campaign's lock if no indexing run holds it
func (c *CampaignLocks) TryAcquire(campaignID uuid.UUID) bool {
	lock, _ := c.locks.LoadOrStore(campaignID, &IndexLock{})
	return lock.(*IndexLock).TryAcquire()
}

// Release frees the campaign's lock
func (c *CampaignLocks) Release(campaignID uuid.UUID) {
	if lock, ok := c.locks.Load(campaignID); ok {
		lock.(*IndexLock).Release()
	}
}
