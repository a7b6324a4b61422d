// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package sync

import (
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/nxgtw/ipcdemo/internal/common"
	"github.com/nxgtw/ipcdemo/internal/helper"
	"github.com/nxgtw/ipcdemo/mmf"
	"github.com/nxgtw/ipcdemo/shm"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// the owner's pid follows the lock state in the shared object.
	mutexStateSize = lwmStateSize + 4
	// how often a blocked waiter checks, that the owner is alive.
	ownerCheckPeriod = time.Millisecond * 100
)

// ErrOwnerDead is returned by Acquire, when the mutex is held by a process, which no longer exists.
var ErrOwnerDead = errors.New("mutex owner is dead")

// Mutex is a named interprocess mutex based on a futex placed into a shared memory object.
// The pid of the holder is stored next to the lock state. A waiter periodically checks it
// and gives up with ErrOwnerDead, if the holder died. Such a mutex is not recovered.
type Mutex struct {
	lwm    *lwMutex
	owner  *uint32
	region *mmf.MemoryRegion
	name   string
}

// NewMutex creates or opens a named mutex.
//	name - object name.
//	flag - a combination of os.O_CREATE and os.O_EXCL. 0 means 'open only'.
//	perm - object's permission bits.
// The state of a newly created mutex is 'unlocked'. An opened mutex keeps its state.
func NewMutex(name string, flag int, perm os.FileMode) (*Mutex, error) {
	if err := common.CheckObjectFlags(flag); err != nil {
		return nil, err
	}
	region, created, err := helper.CreateWritableRegion(mutexSharedStateName(name), flag, perm, mutexStateSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create shared state")
	}
	data := region.Data()
	ptr := unsafe.Pointer(&data[0])
	result := &Mutex{
		region: region,
		name:   name,
		owner:  (*uint32)(unsafe.Pointer(&data[lwmStateSize])),
		lwm:    newLightweightMutex(ptr, &futex{ptr: ptr, timeout: ownerCheckPeriod}),
	}
	result.lwm.afterWait = result.checkOwner
	if created {
		result.lwm.init()
		atomic.StoreUint32(result.owner, 0)
	}
	return result, nil
}

// Acquire locks the mutex. If it is already locked, the call blocks until the mutex is available,
// or until it turns out, that the holder has died.
func (m *Mutex) Acquire() error {
	if err := m.lwm.lock(); err != nil {
		return err
	}
	atomic.StoreUint32(m.owner, uint32(os.Getpid()))
	return nil
}

// TryAcquire makes one attempt to lock the mutex. It return true on success and false otherwise.
func (m *Mutex) TryAcquire() bool {
	if !m.lwm.tryLock() {
		return false
	}
	atomic.StoreUint32(m.owner, uint32(os.Getpid()))
	return true
}

// Release unlocks the mutex. It returns an error, if the mutex was not locked.
func (m *Mutex) Release() error {
	atomic.StoreUint32(m.owner, 0)
	return m.lwm.unlock()
}

func (m *Mutex) checkOwner() error {
	pid := atomic.LoadUint32(m.owner)
	if pid == 0 || processExists(int(pid)) {
		return nil
	}
	return errors.Wrapf(ErrOwnerDead, "pid %d", pid)
}

func processExists(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// Lock locks m. Lock panics on any error.
func (m *Mutex) Lock() {
	if err := m.Acquire(); err != nil {
		panic(err)
	}
}

// Unlock unlocks m. Unlock panics on any error.
func (m *Mutex) Unlock() {
	if err := m.Release(); err != nil {
		panic(err)
	}
}

// Name returns the name of the mutex.
func (m *Mutex) Name() string {
	return m.name
}

// Close indicates, that the object is no longer in use,
// and that the underlying resources can be freed.
// It does not change the state of the mutex, so it must not be held by the caller.
func (m *Mutex) Close() error {
	return m.region.Close()
}

// Destroy closes the mutex and removes the object.
func (m *Mutex) Destroy() error {
	if err := m.Close(); err != nil {
		return errors.Wrap(err, "failed to close shm region")
	}
	return DestroyMutex(m.name)
}

// DestroyMutex permanently removes mutex with the given name.
func DestroyMutex(name string) error {
	if err := shm.DestroyMemoryObject(mutexSharedStateName(name)); err != nil {
		return errors.Wrap(err, "failed to destroy memory object")
	}
	return nil
}

func mutexSharedStateName(name string) string {
	return "ipcdemo.futex." + name
}
