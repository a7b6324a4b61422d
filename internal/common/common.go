// Copyright 2016 Aleksandr Demakin. All rights reserved.

package common

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// CheckObjectFlags makes sure, that flag contains only creation flags, which
// make sense for named objects: os.O_CREATE and os.O_EXCL.
func CheckObjectFlags(flag int) error {
	if flag & ^(os.O_CREATE|os.O_EXCL) != 0 {
		return errors.Errorf("invalid open flags %#x", flag)
	}
	if flag&os.O_EXCL != 0 && flag&os.O_CREATE == 0 {
		return errors.New("os.O_EXCL requires os.O_CREATE")
	}
	return nil
}

// SyscallErrHasCode returns true, if err is a syscall error with the given errno.
func SyscallErrHasCode(err error, code syscall.Errno) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == code
	}
	return false
}

// IsInterruptedSyscallErr returns true, if err is EINTR.
func IsInterruptedSyscallErr(err error) bool {
	return SyscallErrHasCode(err, syscall.EINTR)
}

// IsWouldBlockErr returns true, if err is EAGAIN (aka EWOULDBLOCK).
func IsWouldBlockErr(err error) bool {
	return SyscallErrHasCode(err, syscall.EAGAIN)
}
