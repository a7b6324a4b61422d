// Copyright 2016 Aleksandr Demakin. All rights reserved.

package mailbox

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nxgtw/ipcdemo"
	"github.com/nxgtw/ipcdemo/eventlog"
	"github.com/nxgtw/ipcdemo/internal/console"

	"github.com/pkg/errors"
)

var stageMessages = map[string]string{
	StageCreateMemory: "shared memory object created",
	StageOpenMemory:   "shared memory object opened",
	StageMapMemory:    "shared memory mapped",
	StageCreateMutex:  "mutex created",
	StageOpenMutex:    "mutex opened",
}

// CreateLogged is Create, which logs every setup stage.
func CreateLogged(names Names, capacity int, perm os.FileMode, log *eventlog.Log) (*Mailbox, error) {
	mb, err := Create(names, capacity, perm)
	return mb, logSetup(log, err, StageCreateMemory, StageMapMemory, StageCreateMutex)
}

// OpenLogged is Open, which logs every setup stage.
func OpenLogged(names Names, log *eventlog.Log) (*Mailbox, error) {
	mb, err := Open(names)
	return mb, logSetup(log, err, StageOpenMemory, StageMapMemory, StageOpenMutex)
}

func logSetup(log *eventlog.Log, err error, stages ...string) error {
	sys := log.WithPeer(eventlog.PeerSystem)
	failed := ipc.SetupStage(err)
	for _, stage := range stages {
		if stage == failed {
			sys.Error(stage, "setup failed", err)
			return err
		}
		sys.Info(stage, stageMessages[stage], 0)
	}
	if err != nil {
		sys.Error(failed, "setup failed", err)
	}
	return err
}

// RunWriter reads lines from in and puts them into the mailbox.
// The line "sair" or the end of input sets the shutdown flag and stops the loop.
// Empty lines are ignored.
func RunWriter(mb *Mailbox, in io.Reader, log *eventlog.Log) error {
	sys, data := log.WithPeer(eventlog.PeerSystem), log.WithPeer(eventlog.PeerSharedMemory)
	lines := console.NewLineReader(in)
	for {
		line, ok := lines.Next()
		if !ok || line == ipc.SentinelSair {
			if err := mb.SignalShutdown(); err != nil {
				sys.Error(StageWaitMutex, "failed to acquire the mutex", err)
				return err
			}
			sys.Info("mutex_acquire", "mutex acquired for shutdown", 0)
			data.Info("shutdown", "shutdown flag set", 0)
			sys.Info("mutex_release", "mutex released", 0)
			return errors.Wrap(lines.Err(), "failed to read input")
		}
		if len(line) == 0 {
			continue
		}
		n, err := mb.Write([]byte(line))
		if err != nil {
			sys.Error(StageWaitMutex, "failed to acquire the mutex", err)
			return err
		}
		sys.Info("mutex_acquire", "mutex acquired for write", 0)
		data.Info("write", line[:n], n)
		if n < len(line) {
			data.Info("truncate", fmt.Sprintf("message truncated from %d to %d bytes", len(line), n), n)
		}
		sys.Info("mutex_release", "mutex released", 0)
	}
}

// RunReader polls the mailbox every interval and logs received messages.
// It stops, when the writer sets the shutdown flag.
func RunReader(mb *Mailbox, interval time.Duration, log *eventlog.Log) error {
	sys, data := log.WithPeer(eventlog.PeerSystem), log.WithPeer(eventlog.PeerSharedMemory)
	for {
		msg, err := mb.PollRead()
		switch {
		case errors.Is(err, ipc.ErrShutdown):
			data.Info("exit", "shutdown flag is set", 0)
			return nil
		case err != nil:
			sys.Error(StageWaitMutex, "failed to acquire the mutex", err)
			return err
		case msg != nil:
			sys.Info("mutex_acquire", "mutex acquired for read", 0)
			data.Info("read", string(msg), len(msg))
			sys.Info("mutex_release", "mutex released", 0)
		}
		time.Sleep(interval)
	}
}
