// Copyright 2015 Aleksandr Demakin. All rights reserved.

package shm

import (
	"os"

	"github.com/nxgtw/ipcdemo/internal/common"

	"github.com/pkg/errors"
)

// MemoryObject represents an object which can be used to
// map shared memory regions into the process' address space.
// The object is always opened for reading and writing.
type MemoryObject struct {
	*memoryObject
}

// NewMemoryObject creates or opens a shared memory object.
//	name - a name of the object. should not contain '/' and exceed 255 symbols.
//	flag - a combination of os.O_CREATE and os.O_EXCL. 0 means 'open only'.
//	perm - file's mode and permission bits.
func NewMemoryObject(name string, flag int, perm os.FileMode) (*MemoryObject, error) {
	if err := common.CheckObjectFlags(flag); err != nil {
		return nil, err
	}
	impl, err := newMemoryObject(name, flag|os.O_RDWR, perm)
	if err != nil {
		return nil, err
	}
	return &MemoryObject{impl}, nil
}

// NewMemoryObjectSize opens or creates a shared memory object with the given size.
// If the object was created, it is truncated to size and is zero-filled.
// If it already existed, its size must be at least size bytes.
// It returns the object and a flag, which is true, if the object was created.
// On any error a newly created object is destroyed.
func NewMemoryObjectSize(name string, flag int, perm os.FileMode, size int64) (*MemoryObject, bool, error) {
	if err := common.CheckObjectFlags(flag); err != nil {
		return nil, false, err
	}
	var obj *MemoryObject
	var created bool
	var err error
	if flag&os.O_CREATE != 0 {
		// try to create a new object first, so that we know, if it needs initialization.
		obj, err = NewMemoryObject(name, os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			created = true
		} else if os.IsExist(errors.Cause(err)) && flag&os.O_EXCL == 0 {
			obj, err = NewMemoryObject(name, 0, perm)
		}
	} else {
		obj, err = NewMemoryObject(name, 0, perm)
	}
	if err != nil {
		return nil, false, err
	}
	if created {
		if err = obj.Truncate(size); err != nil {
			obj.Destroy()
			return nil, false, errors.Wrap(err, "failed to truncate shm object")
		}
	} else if obj.Size() < size {
		obj.Close()
		return nil, false, errors.Errorf("existing object has invalid size %d, expected at least %d", obj.Size(), size)
	}
	return obj, created, nil
}

// DestroyMemoryObject permanently removes the shared memory object with the given name.
// It is not an error, if the object does not exist.
func DestroyMemoryObject(name string) error {
	return destroyMemoryObject(name)
}
