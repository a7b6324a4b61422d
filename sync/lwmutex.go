// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
)

const (
	cSpinCount              = 100
	cMutexUnlocked          = uint32(0)
	cMutexLockedNoWaiters   = uint32(1)
	cMutexLockedHaveWaiters = uint32(2)
)

const (
	lwmStateSize = int(unsafe.Sizeof(uint32(0)))
)

// waitWaker is an object, which implements wake/wait semantics.
type waitWaker interface {
	wake(count uint32) (int, error)
	wait(value uint32) error
}

// lwMutex is a lightweight mutex implementation operating on a uint32 memory cell.
// it tries to minimize amount of syscalls needed to do locking.
// actual sleeping must be implemented by a waitWaker object.
// This is 'mutex3' from 'Futexes Are Tricky' by Ulrich Drepper.
type lwMutex struct {
	ptr *uint32
	ww  waitWaker
	// afterWait, if set, is called every time a wait returns.
	// its error stops the lock attempt.
	afterWait func() error
}

func newLightweightMutex(ptr unsafe.Pointer, ww waitWaker) *lwMutex {
	return &lwMutex{ptr: (*uint32)(ptr), ww: ww}
}

// init writes initial value into mutex's memory location.
func (lwm *lwMutex) init() {
	atomic.StoreUint32(lwm.ptr, cMutexUnlocked)
}

func (lwm *lwMutex) tryLock() bool {
	return atomic.CompareAndSwapUint32(lwm.ptr, cMutexUnlocked, cMutexLockedNoWaiters)
}

// lock blocks without any time limit, until the mutex is acquired, or the wait fails.
func (lwm *lwMutex) lock() error {
	for i := 0; i < cSpinCount; i++ {
		if lwm.tryLock() {
			return nil
		}
		runtime.Gosched()
	}
	old := atomic.LoadUint32(lwm.ptr)
	if old != cMutexLockedHaveWaiters {
		old = atomic.SwapUint32(lwm.ptr, cMutexLockedHaveWaiters)
	}
	for old != cMutexUnlocked {
		if err := lwm.ww.wait(cMutexLockedHaveWaiters); err != nil {
			return errors.Wrap(err, "mutex wait failed")
		}
		if lwm.afterWait != nil {
			if err := lwm.afterWait(); err != nil {
				return errors.Wrap(err, "mutex wait failed")
			}
		}
		old = atomic.SwapUint32(lwm.ptr, cMutexLockedHaveWaiters)
	}
	return nil
}

func (lwm *lwMutex) unlock() error {
	switch atomic.SwapUint32(lwm.ptr, cMutexUnlocked) {
	case cMutexUnlocked:
		return errors.New("unlock of unlocked mutex")
	case cMutexLockedNoWaiters:
		return nil
	}
	if _, err := lwm.ww.wake(1); err != nil {
		return errors.Wrap(err, "mutex wake failed")
	}
	return nil
}
