// Copyright 2015 Aleksandr Demakin. All rights reserved.

package sync

import (
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/nxgtw/ipcdemo/internal/helper"
	"github.com/nxgtw/ipcdemo/shm"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// this is to ensure, that the mutex can be used where a sync.Locker is expected.
var (
	_ sync.Locker = (*Mutex)(nil)
)

func testLockerName() string {
	return "locker-" + uuid.NewString()
}

func TestMutexOpenMode(t *testing.T) {
	a := assert.New(t)
	name := testLockerName()
	_, err := NewMutex(name, os.O_RDWR, 0666)
	a.Error(err)
	_, err = NewMutex(name, os.O_EXCL, 0666)
	a.Error(err)
	_, err = NewMutex(name, 0, 0666)
	a.Error(err)
	m, err := NewMutex(name, os.O_CREATE|os.O_EXCL, 0666)
	if !a.NoError(err) {
		return
	}
	defer func() {
		a.NoError(m.Destroy())
	}()
	_, err = NewMutex(name, os.O_CREATE|os.O_EXCL, 0666)
	a.Error(err)
	m2, err := NewMutex(name, 0, 0666)
	if a.NoError(err) {
		a.Equal(name, m2.Name())
		a.NoError(m2.Close())
	}
	m3, err := NewMutex(name, os.O_CREATE, 0666)
	if a.NoError(err) {
		a.NoError(m3.Close())
	}
}

func TestMutexLock(t *testing.T) {
	a := assert.New(t)
	name := testLockerName()
	m, err := NewMutex(name, os.O_CREATE|os.O_EXCL, 0666)
	if !a.NoError(err) {
		return
	}
	defer m.Destroy()
	var wg sync.WaitGroup
	sharedValue := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			for i := 0; i < 1000; i++ {
				sharedValue++
			}
			m.Unlock()
		}()
	}
	wg.Wait()
	a.Equal(30000, sharedValue)
}

func TestMutexReleaseUnlocked(t *testing.T) {
	a := assert.New(t)
	name := testLockerName()
	m, err := NewMutex(name, os.O_CREATE|os.O_EXCL, 0666)
	if !a.NoError(err) {
		return
	}
	defer m.Destroy()
	a.Error(m.Release())
	a.Panics(m.Unlock)
}

func TestMutexStateIsShared(t *testing.T) {
	a := assert.New(t)
	name := testLockerName()
	m, err := NewMutex(name, os.O_CREATE|os.O_EXCL, 0666)
	if !a.NoError(err) {
		return
	}
	defer m.Destroy()
	m2, err := NewMutex(name, 0, 0666)
	if !a.NoError(err) {
		return
	}
	defer m2.Close()
	a.NoError(m.Acquire())
	a.False(m2.TryAcquire())
	released := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		if a.NoError(m2.Acquire()) {
			close(acquired)
			<-released
			a.NoError(m2.Release())
		}
	}()
	select {
	case <-acquired:
		t.Fatal("the mutex was acquired twice")
	case <-time.After(time.Millisecond * 100):
	}
	a.NoError(m.Release())
	select {
	case <-acquired:
	case <-time.After(time.Second * 5):
		t.Fatal("the waiter was not woken up")
	}
	close(released)
	a.NoError(m.Acquire())
	a.NoError(m.Release())
}

func TestMutexOwnerIsRecorded(t *testing.T) {
	a := assert.New(t)
	m, err := NewMutex(testLockerName(), os.O_CREATE|os.O_EXCL, 0666)
	if !a.NoError(err) {
		return
	}
	defer m.Destroy()
	a.Equal(uint32(0), atomic.LoadUint32(m.owner))
	a.NoError(m.Acquire())
	a.Equal(uint32(os.Getpid()), atomic.LoadUint32(m.owner))
	a.NoError(m.checkOwner())
	a.NoError(m.Release())
	a.Equal(uint32(0), atomic.LoadUint32(m.owner))
	a.True(m.TryAcquire())
	a.Equal(uint32(os.Getpid()), atomic.LoadUint32(m.owner))
	a.NoError(m.Release())
}

// a mutex left locked by a process, which has exited, must not block other processes forever.
func TestMutexOwnerDead(t *testing.T) {
	a := assert.New(t)
	name := testLockerName()
	m, err := NewMutex(name, os.O_CREATE|os.O_EXCL, 0666)
	if !a.NoError(err) {
		return
	}
	defer m.Destroy()
	m2, err := NewMutex(name, 0, 0666)
	if !a.NoError(err) {
		return
	}
	defer m2.Close()
	// the test binary with no tests to run exits at once, and its pid is gone after Wait.
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	if !a.NoError(cmd.Run()) {
		return
	}
	a.NoError(m.Acquire())
	atomic.StoreUint32(m.owner, uint32(cmd.Process.Pid))
	done := make(chan error, 1)
	go func() {
		done <- m2.Acquire()
	}()
	select {
	case err = <-done:
		a.Equal(ErrOwnerDead, errors.Cause(err))
	case <-time.After(time.Second * 5):
		t.Fatal("the waiter was not stopped")
	}
}

// several handles of the same mutex, each with its own mapping,
// protect a counter in a separate shared memory object.
func TestMutexValueInc(t *testing.T) {
	const (
		jobs       = 4
		iterations = 20000
	)
	a := assert.New(t)
	name := testLockerName()
	m, err := NewMutex(name, os.O_CREATE|os.O_EXCL, 0666)
	if !a.NoError(err) {
		return
	}
	defer m.Destroy()
	counterName := "counter-" + uuid.NewString()
	region, _, err := helper.CreateWritableRegion(counterName, os.O_CREATE, 0666, 8)
	if !a.NoError(err) {
		return
	}
	defer func() {
		region.Close()
		shm.DestroyMemoryObject(counterName)
	}()
	ptr := (*int64)(unsafe.Pointer(&region.Data()[0]))
	var wg sync.WaitGroup
	var failures int32
	for i := 0; i < jobs; i++ {
		handle, err := NewMutex(name, 0, 0666)
		if !a.NoError(err) {
			return
		}
		defer handle.Close()
		wg.Add(1)
		go func(handle *Mutex) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				if err := handle.Acquire(); err != nil {
					atomic.AddInt32(&failures, 1)
					return
				}
				*ptr++
				if err := handle.Release(); err != nil {
					atomic.AddInt32(&failures, 1)
					return
				}
			}
		}(handle)
	}
	wg.Wait()
	a.Equal(int32(0), failures)
	a.Equal(int64(jobs*iterations), *ptr)
}

func TestDestroyMissingMutex(t *testing.T) {
	assert.NoError(t, DestroyMutex(testLockerName()))
}
