// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package mailbox implements a single-slot message box in a named shared memory region.
// The slot holds at most one unread message. Every access to the region
// is serialized by a named interprocess mutex.
//
// Region layout:
//	capacity uint32 | length uint32 | shutdown uint32 | data [capacity]byte
// The maximum message length is capacity - 1 bytes.
package mailbox

import (
	"encoding/binary"
	"os"

	"github.com/nxgtw/ipcdemo"
	"github.com/nxgtw/ipcdemo/mmf"
	"github.com/nxgtw/ipcdemo/shm"
	ipcsync "github.com/nxgtw/ipcdemo/sync"

	"github.com/pkg/errors"
)

const (
	offCapacity = 0
	offLength   = 4
	offShutdown = 8
	headerSize  = 12

	minCapacity = 2
)

// setup stages. they are also the names of log events.
const (
	StageCreateMemory = "create_memory"
	StageOpenMemory   = "open_memory"
	StageMapMemory    = "map_memory"
	StageCreateMutex  = "create_mutex"
	StageOpenMutex    = "open_mutex"
	StageWaitMutex    = "wait_mutex"
)

// replaced in tests.
var (
	newMemoryObject = shm.NewMemoryObjectSize
	newRegion       = mmf.NewMemoryRegion
	newMutex        = ipcsync.NewMutex
	initMailbox     = (*Mailbox).init
)

var _ ipc.Destroyer = (*Mailbox)(nil)

// Names are the names of the objects the mailbox consists of.
type Names struct {
	Region string
	Mutex  string
}

// Mailbox is a handle to a shared single-slot mailbox.
type Mailbox struct {
	names    Names
	region   *mmf.MemoryRegion
	reader   *mmf.MemoryRegionReader
	writer   *mmf.MemoryRegionWriter
	mu       *ipcsync.Mutex
	capacity int
}

// Create creates a mailbox or reinitializes an existing one. It is used by the writer.
//	capacity - size of the data area. messages are truncated to capacity - 1 bytes.
//	perm - permission bits of the new objects.
// A region left by a previous writer is reused, if it is large enough, and is cleared under the lock.
// On error everything created before the failing stage is released,
// and the error is *ipc.SetupError.
func Create(names Names, capacity int, perm os.FileMode) (*Mailbox, error) {
	if capacity < minCapacity {
		return nil, ipc.NewSetupError(StageCreateMemory, errors.Errorf("invalid capacity %d", capacity))
	}
	size := headerSize + capacity
	obj, created, err := newMemoryObject(names.Region, os.O_CREATE, perm, int64(size))
	if err != nil {
		return nil, ipc.NewSetupError(StageCreateMemory, errors.Wrap(err, "failed to create shm object"))
	}
	defer obj.Close()
	rollback := func() {
		if created {
			obj.Destroy()
		}
	}
	region, err := newRegion(obj, mmf.MEM_READWRITE, 0, size)
	if err != nil {
		rollback()
		return nil, ipc.NewSetupError(StageMapMemory, errors.Wrap(err, "failed to map shm object"))
	}
	mu, mutexCreated, err := createMutex(names.Mutex, perm)
	if err != nil {
		region.Close()
		rollback()
		return nil, ipc.NewSetupError(StageCreateMutex, errors.Wrap(err, "failed to create mutex"))
	}
	mb := newMailbox(names, region, mu, capacity)
	if err = initMailbox(mb); err != nil {
		mb.Close()
		rollback()
		if mutexCreated {
			ipcsync.DestroyMutex(names.Mutex)
		}
		return nil, ipc.NewSetupError(StageWaitMutex, err)
	}
	return mb, nil
}

// createMutex creates a new mutex or opens an existing one.
// created is true, if the mutex did not exist.
func createMutex(name string, perm os.FileMode) (mu *ipcsync.Mutex, created bool, err error) {
	if mu, err = newMutex(name, os.O_CREATE|os.O_EXCL, perm); err == nil {
		return mu, true, nil
	}
	if !os.IsExist(errors.Cause(err)) {
		return nil, false, err
	}
	mu, err = newMutex(name, 0, perm)
	return mu, false, err
}

// Open opens an existing mailbox. It is used by the reader and never creates anything.
// On error everything opened before the failing stage is released,
// and the error is *ipc.SetupError.
func Open(names Names) (*Mailbox, error) {
	obj, err := shm.NewMemoryObject(names.Region, 0, 0)
	if err != nil {
		return nil, ipc.NewSetupError(StageOpenMemory, errors.Wrap(err, "failed to open shm object"))
	}
	defer obj.Close()
	if obj.Size() < headerSize+minCapacity {
		return nil, ipc.NewSetupError(StageMapMemory, errors.Errorf("shm object is too small: %d bytes", obj.Size()))
	}
	region, err := newRegion(obj, mmf.MEM_READWRITE, 0, 0)
	if err != nil {
		return nil, ipc.NewSetupError(StageMapMemory, errors.Wrap(err, "failed to map shm object"))
	}
	mu, err := newMutex(names.Mutex, 0, 0)
	if err != nil {
		region.Close()
		return nil, ipc.NewSetupError(StageOpenMutex, errors.Wrap(err, "failed to open mutex"))
	}
	mb := newMailbox(names, region, mu, 0)
	if err = mb.lock(); err != nil {
		mb.Close()
		return nil, ipc.NewSetupError(StageWaitMutex, err)
	}
	capacity := int(mb.get(offCapacity))
	if err = mb.unlock(); err != nil {
		mb.Close()
		return nil, ipc.NewSetupError(StageWaitMutex, err)
	}
	if capacity < minCapacity || headerSize+capacity > region.Size() {
		mb.Close()
		return nil, ipc.NewSetupError(StageMapMemory, errors.Errorf("invalid mailbox capacity %d", capacity))
	}
	mb.capacity = capacity
	return mb, nil
}

func newMailbox(names Names, region *mmf.MemoryRegion, mu *ipcsync.Mutex, capacity int) *Mailbox {
	return &Mailbox{
		names:    names,
		region:   region,
		reader:   mmf.NewMemoryRegionReader(region),
		writer:   mmf.NewMemoryRegionWriter(region),
		mu:       mu,
		capacity: capacity,
	}
}

func (mb *Mailbox) init() error {
	if err := mb.lock(); err != nil {
		return err
	}
	mb.put(offCapacity, uint32(mb.capacity))
	mb.put(offLength, 0)
	mb.put(offShutdown, 0)
	data := mb.region.Data()[headerSize : headerSize+mb.capacity]
	for i := range data {
		data[i] = 0
	}
	return mb.unlock()
}

// Write stores msg in the slot replacing an unread message, if any.
// The message is truncated to capacity - 1 bytes.
// It returns the number of bytes stored. An empty message is not stored.
func (mb *Mailbox) Write(msg []byte) (int, error) {
	if len(msg) == 0 {
		return 0, nil
	}
	n := len(msg)
	if n > mb.MaxMessageLen() {
		n = mb.MaxMessageLen()
	}
	if err := mb.lock(); err != nil {
		return 0, err
	}
	if _, err := mb.writer.WriteAt(msg[:n], headerSize); err != nil {
		mb.unlock()
		return 0, errors.Wrap(err, "failed to write message")
	}
	mb.put(offLength, uint32(n))
	return n, mb.unlock()
}

// SignalShutdown sets the shutdown flag. Calling it more than once has no additional effect.
func (mb *Mailbox) SignalShutdown() error {
	if err := mb.lock(); err != nil {
		return err
	}
	mb.put(offShutdown, 1)
	return mb.unlock()
}

// PollRead takes the message out of the slot.
// It returns ipc.ErrShutdown, if the shutdown flag is set, even if the slot is not empty.
// If the slot is empty, it returns nil, nil.
func (mb *Mailbox) PollRead() ([]byte, error) {
	if err := mb.lock(); err != nil {
		return nil, err
	}
	var msg []byte
	var resultErr error
	if mb.get(offShutdown) != 0 {
		resultErr = ipc.ErrShutdown
	} else if n := int(mb.get(offLength)); n > 0 {
		if n > mb.MaxMessageLen() {
			n = mb.MaxMessageLen()
		}
		msg = make([]byte, n)
		if _, err := mb.reader.ReadAt(msg, headerSize); err != nil {
			resultErr = errors.Wrap(err, "failed to read message")
			msg = nil
		} else {
			mb.put(offLength, 0)
		}
	}
	if err := mb.unlock(); err != nil {
		return nil, err
	}
	return msg, resultErr
}

// Capacity returns the size of the data area.
func (mb *Mailbox) Capacity() int {
	return mb.capacity
}

// MaxMessageLen returns the maximum length of a stored message.
func (mb *Mailbox) MaxMessageLen() int {
	return mb.capacity - 1
}

// Names returns the names of the objects of the mailbox.
func (mb *Mailbox) Names() Names {
	return mb.names
}

// Close unmaps the region and closes the mutex. The objects are not removed.
// The mutex must not be held by the caller.
func (mb *Mailbox) Close() error {
	err1 := mb.region.Close()
	err2 := mb.mu.Close()
	if err1 != nil {
		return errors.Wrap(err1, "failed to close shm region")
	}
	if err2 != nil {
		return errors.Wrap(err2, "failed to close mutex")
	}
	return nil
}

// Destroy closes the mailbox and removes its objects.
func (mb *Mailbox) Destroy() error {
	err := mb.Close()
	if destroyErr := Destroy(mb.names); err == nil {
		err = destroyErr
	}
	return err
}

// Destroy removes the objects of the mailbox with the given names.
// It is not an error, if they do not exist.
func Destroy(names Names) error {
	err1 := shm.DestroyMemoryObject(names.Region)
	err2 := ipcsync.DestroyMutex(names.Mutex)
	if err1 != nil {
		return errors.Wrap(err1, "failed to destroy shm object")
	}
	if err2 != nil {
		return errors.Wrap(err2, "failed to destroy mutex")
	}
	return nil
}

func (mb *Mailbox) lock() error {
	return errors.Wrap(mb.mu.Acquire(), StageWaitMutex)
}

func (mb *Mailbox) unlock() error {
	return errors.Wrap(mb.mu.Release(), "failed to release mutex")
}

func (mb *Mailbox) get(off int) uint32 {
	return binary.LittleEndian.Uint32(mb.region.Data()[off:])
}

func (mb *Mailbox) put(off int, value uint32) {
	binary.LittleEndian.PutUint32(mb.region.Data()[off:], value)
}
