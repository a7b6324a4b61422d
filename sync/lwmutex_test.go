// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"runtime"
	"sync"
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// spinWaitWaker never sleeps, it makes the lightweight mutex a spin lock.
type spinWaitWaker struct {
	wakes int
	err   error
	mu    sync.Mutex
}

func (s *spinWaitWaker) wait(value uint32) error {
	runtime.Gosched()
	return s.err
}

func (s *spinWaitWaker) wake(count uint32) (int, error) {
	s.mu.Lock()
	s.wakes++
	s.mu.Unlock()
	return int(count), nil
}

func TestLwMutexUncontended(t *testing.T) {
	a := assert.New(t)
	var state uint32
	ww := &spinWaitWaker{}
	lwm := newLightweightMutex(unsafe.Pointer(&state), ww)
	lwm.init()
	a.NoError(lwm.lock())
	a.Equal(cMutexLockedNoWaiters, state)
	a.False(lwm.tryLock())
	a.NoError(lwm.unlock())
	a.Equal(cMutexUnlocked, state)
	a.Equal(0, ww.wakes)
	a.Error(lwm.unlock())
}

func TestLwMutexWakesWaiters(t *testing.T) {
	a := assert.New(t)
	var state uint32
	ww := &spinWaitWaker{}
	lwm := newLightweightMutex(unsafe.Pointer(&state), ww)
	lwm.init()
	a.True(lwm.tryLock())
	state = cMutexLockedHaveWaiters
	a.NoError(lwm.unlock())
	a.Equal(1, ww.wakes)
}

func TestLwMutexWaitError(t *testing.T) {
	var state uint32
	ww := &spinWaitWaker{err: errors.New("wait failed")}
	lwm := newLightweightMutex(unsafe.Pointer(&state), ww)
	lwm.init()
	assert.True(t, lwm.tryLock())
	assert.Error(t, lwm.lock())
}

func TestLwMutexAfterWaitError(t *testing.T) {
	a := assert.New(t)
	var state uint32
	lwm := newLightweightMutex(unsafe.Pointer(&state), &spinWaitWaker{})
	lwm.init()
	var calls int
	stop := errors.New("stop waiting")
	lwm.afterWait = func() error {
		if calls++; calls < 3 {
			return nil
		}
		return stop
	}
	a.True(lwm.tryLock())
	err := lwm.lock()
	a.Equal(stop, errors.Cause(err))
	a.Equal(3, calls)
	a.Equal(cMutexLockedHaveWaiters, state)
}
