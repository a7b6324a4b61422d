// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux

package shm

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type memoryObject struct {
	file *os.File
}

func newMemoryObject(name string, flag int, perm os.FileMode) (*memoryObject, error) {
	path, err := shmName(name)
	if err != nil {
		return nil, err
	}
	file, err := shmOpen(path, flag, perm)
	if err != nil {
		return nil, err
	}
	return &memoryObject{file: file}, nil
}

// Destroy closes the object and removes it.
func (obj *memoryObject) Destroy() error {
	if int(obj.Fd()) >= 0 {
		if err := obj.Close(); err != nil {
			return err
		}
	}
	return doDestroyMemoryObject(obj.file.Name())
}

// Name returns the name of the object as it was passed to NewMemoryObject.
func (obj *memoryObject) Name() string {
	return filepath.Base(obj.file.Name())
}

// Close closes object's file. Existing mappings stay valid.
func (obj *memoryObject) Close() error {
	if err := obj.file.Close(); err != nil {
		return errors.Wrap(err, "failed to close shm file")
	}
	return nil
}

// Truncate changes the size of the object.
func (obj *memoryObject) Truncate(size int64) error {
	return obj.file.Truncate(size)
}

// Size returns current object's size, or 0 on error.
func (obj *memoryObject) Size() int64 {
	fileInfo, err := obj.file.Stat()
	if err != nil {
		return 0
	}
	return fileInfo.Size()
}

// Fd returns a descriptor of the object's file, which can be used for mmap.
func (obj *memoryObject) Fd() uintptr {
	return obj.file.Fd()
}

// Stat is to let a mapping find out object's size.
func (obj *memoryObject) Stat() (os.FileInfo, error) {
	return obj.file.Stat()
}

func destroyMemoryObject(name string) error {
	path, err := shmName(name)
	if err != nil {
		return err
	}
	return doDestroyMemoryObject(path)
}
