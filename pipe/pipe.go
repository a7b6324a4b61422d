// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package pipe implements a duplex channel over two anonymous pipes
// between a parent process and a child, which is the same executable re-invoked.
package pipe

import (
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/nxgtw/ipcdemo"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// setup stages. they are also the names of log events.
const (
	StagePipeCreate = "pipe_create"
	StageSpawn      = "spawn"
	StageChildFds   = "child_fds"
)

// descriptors of the inherited pipe ends in the child process.
const (
	ChildReadFd  = 3
	ChildWriteFd = 4
)

// End is one side of a duplex channel. It reads from one pipe and writes to the other.
type End struct {
	r, w     *os.File
	once     sync.Once
	closeErr error
}

// ChildEnds are the pipe ends, which belong to the child.
// They are passed to the child process and closed in the parent after that.
type ChildEnds struct {
	Read  *os.File
	Write *os.File
}

// Open creates two pipes. It returns the parent's end and the ends to be given to the child.
func Open() (*End, *ChildEnds, error) {
	// parent -> child
	childR, parentW, err := os.Pipe()
	if err != nil {
		return nil, nil, ipc.NewSetupError(StagePipeCreate, errors.Wrap(err, "failed to create parent->child pipe"))
	}
	// child -> parent
	parentR, childW, err := os.Pipe()
	if err != nil {
		childR.Close()
		parentW.Close()
		return nil, nil, ipc.NewSetupError(StagePipeCreate, errors.Wrap(err, "failed to create child->parent pipe"))
	}
	return newEnd(parentR, parentW), &ChildEnds{Read: childR, Write: childW}, nil
}

// FromDescriptors creates the child's end from inherited descriptors.
// Both descriptors must be open.
func FromDescriptors(readFd, writeFd int) (*End, error) {
	for _, fd := range []int{readFd, writeFd} {
		if fd < 0 {
			return nil, ipc.NewSetupError(StageChildFds, errors.Errorf("invalid descriptor %d", fd))
		}
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
			return nil, ipc.NewSetupError(StageChildFds, errors.Wrapf(err, "descriptor %d is not open", fd))
		}
	}
	r := os.NewFile(uintptr(readFd), "pipe-read")
	w := os.NewFile(uintptr(writeFd), "pipe-write")
	return newEnd(r, w), nil
}

// ParseDescriptors converts command line arguments into descriptor numbers.
func ParseDescriptors(readArg, writeArg string) (readFd, writeFd int, err error) {
	if readFd, err = strconv.Atoi(readArg); err != nil {
		return -1, -1, ipc.NewSetupError(StageChildFds, errors.Wrap(err, "invalid read descriptor"))
	}
	if writeFd, err = strconv.Atoi(writeArg); err != nil {
		return -1, -1, ipc.NewSetupError(StageChildFds, errors.Wrap(err, "invalid write descriptor"))
	}
	return readFd, writeFd, nil
}

func newEnd(r, w *os.File) *End {
	return &End{r: r, w: w}
}

// Send makes one write attempt.
func (e *End) Send(msg []byte) (int, error) {
	n, err := e.w.Write(msg)
	if err != nil {
		return n, errors.Wrap(err, "pipe write failed")
	}
	return n, nil
}

// Receive makes one read attempt into buf.
// It returns ipc.ErrPeerClosed, if the other side has closed its write end.
func (e *End) Receive(buf []byte) (int, error) {
	n, err := e.r.Read(buf)
	if err == io.EOF || (err == nil && n == 0) {
		return 0, ipc.ErrPeerClosed
	}
	if err != nil {
		return n, errors.Wrap(err, "pipe read failed")
	}
	return n, nil
}

// Close closes both descriptors. Only the first call has effect,
// subsequent calls return its result.
func (e *End) Close() error {
	e.once.Do(func() {
		e.closeErr = closeFiles(e.r, e.w)
	})
	return e.closeErr
}

// Close closes the child's ends.
func (c *ChildEnds) Close() error {
	return closeFiles(c.Read, c.Write)
}

func closeFiles(files ...*os.File) error {
	var result error
	for _, f := range files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && result == nil {
			result = errors.Wrap(err, "failed to close pipe")
		}
	}
	return result
}
