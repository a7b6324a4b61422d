// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package sync

import (
	"os"
	"time"
	"unsafe"

	"github.com/nxgtw/ipcdemo/internal/common"

	"golang.org/x/sys/unix"
)

const (
	cFUTEX_WAIT = 0
	cFUTEX_WAKE = 1
)

// futex is a linux futex placed into a memory location.
// The location is shared between processes, so private futex operations are never used.
type futex struct {
	ptr unsafe.Pointer
	// timeout limits a single wait. zero means no limit.
	timeout time.Duration
}

func (f *futex) addr() *uint32 {
	return (*uint32)(f.ptr)
}

// wait blocks until the futex is woken, if its value still equals value.
// It returns nil, if the value has changed before the call, the wait was interrupted,
// or it timed out, so the caller must re-check its condition.
func (f *futex) wait(value uint32) error {
	var ts *unix.Timespec
	if f.timeout > 0 {
		spec := unix.NsecToTimespec(int64(f.timeout))
		ts = &spec
	}
	_, err := futexSyscall(f.ptr, cFUTEX_WAIT, value, ts)
	if err != nil && (common.IsWouldBlockErr(err) ||
		common.IsInterruptedSyscallErr(err) ||
		common.SyscallErrHasCode(err, unix.ETIMEDOUT)) {
		return nil
	}
	return err
}

// wake wakes up to count waiters and returns the number of woken waiters.
func (f *futex) wake(count uint32) (int, error) {
	n, err := futexSyscall(f.ptr, cFUTEX_WAKE, count, nil)
	return int(n), err
}

func futexSyscall(addr unsafe.Pointer, op int32, val uint32, ts *unix.Timespec) (int32, error) {
	r1, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(addr),
		uintptr(op),
		uintptr(val),
		uintptr(unsafe.Pointer(ts)),
		0,
		0)
	if errno != 0 {
		return 0, os.NewSyscallError("futex", errno)
	}
	return int32(r1), nil
}
