// Copyright 2016 Aleksandr Demakin. All rights reserved.

package pipe

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/nxgtw/ipcdemo"
	"github.com/nxgtw/ipcdemo/eventlog"
	"github.com/nxgtw/ipcdemo/internal/console"

	"github.com/pkg/errors"
)

const (
	// ChildReplyPrefix starts every reply of the child.
	ChildReplyPrefix = "Filho recebeu: "

	parentPrompt = "Digite mensagem para filho (sair para terminar): "
	minBufSize   = 2
)

// Start creates the pipes and spawns the child.
// exe and args are the child's command line without the descriptor numbers.
func Start(exe string, args []string, stdout, stderr io.Writer, log *eventlog.Log) (*End, *exec.Cmd, error) {
	end, childEnds, err := Open()
	if err != nil {
		log.Error(StagePipeCreate, "failed to create pipes", err)
		return nil, nil, err
	}
	log.Info(StagePipeCreate, "pipes parent->child and child->parent created", 0)
	cmd, err := Spawn(exe, args, childEnds, stdout, stderr)
	if err != nil {
		end.Close()
		log.Error(StageSpawn, "failed to start the child process", err)
		return nil, nil, err
	}
	log.Info(StageSpawn, fmt.Sprintf("child process %d started", cmd.Process.Pid), 0)
	return end, cmd, nil
}

// RunParent sends console lines from in to the child and prints its replies to out.
// It stops after the reply to a sentinel, or when the child closes its end.
// The end of input is treated as "sair". Empty lines are not sent.
// If reading the input fails, "sair" is sent as well, and the read error is returned.
// The end is closed and the child is waited for before return.
//	bufSize - read buffer size. at most bufSize - 1 bytes are read at once.
func RunParent(end *End, child *exec.Cmd, in io.Reader, out io.Writer, bufSize int, log *eventlog.Log) error {
	if bufSize < minBufSize {
		return errors.Errorf("invalid buffer size %d", bufSize)
	}
	resultErr := parentLoop(end, in, out, make([]byte, bufSize-1), log)
	end.Close()
	if err := child.Wait(); err != nil {
		log.Error("finish", "child process failed", err)
		if resultErr == nil {
			resultErr = errors.Wrap(err, "child process failed")
		}
		return resultErr
	}
	log.Info("finish", "parent finished", 0)
	return resultErr
}

func parentLoop(end *End, in io.Reader, out io.Writer, buf []byte, log *eventlog.Log) error {
	lines := console.NewLineReader(in)
	var inputErr error
	for {
		fmt.Fprint(out, parentPrompt)
		line, ok := lines.Next()
		if !ok {
			// the child still gets the sentinel, so that both sides finish.
			if inputErr = lines.Err(); inputErr != nil {
				inputErr = errors.Wrap(inputErr, "failed to read input")
				log.Error("send", "failed to read console input", inputErr)
			}
			line = ipc.SentinelSair
		}
		if len(line) == 0 {
			continue
		}
		msg := []byte(line)
		n, err := end.Send(msg)
		if err != nil {
			log.Error("send", line, err)
			return err
		}
		log.Info("send", line, n)
		if n, err = end.Receive(buf); err != nil {
			if errors.Is(err, ipc.ErrPeerClosed) {
				log.Info("peer_closed", "child closed the pipe", 0)
				return inputErr
			}
			log.Error("recv", "failed to receive a reply", err)
			return err
		}
		reply := string(buf[:n])
		log.Info("recv", reply, n)
		fmt.Fprintln(out, reply)
		if ipc.IsSentinel(msg) {
			return inputErr
		}
	}
}

// RunChild replies to every message of the parent with ChildReplyPrefix followed by the message.
// It stops after the reply to a sentinel, or when the parent closes its end.
// The end is closed before return.
func RunChild(end *End, bufSize int, log *eventlog.Log) error {
	defer func() {
		end.Close()
		log.Info("finish", "child finished", 0)
	}()
	if bufSize < minBufSize {
		return errors.Errorf("invalid buffer size %d", bufSize)
	}
	buf := make([]byte, bufSize-1)
	for {
		n, err := end.Receive(buf)
		if err != nil {
			if errors.Is(err, ipc.ErrPeerClosed) {
				log.Info("peer_closed", "parent closed the pipe", 0)
				return nil
			}
			log.Error("recv", "failed to receive a message", err)
			return err
		}
		msg := buf[:n]
		log.Info("recv", string(msg), n)
		reply := append([]byte(ChildReplyPrefix), msg...)
		if n, err = end.Send(reply); err != nil {
			log.Error("send", string(reply), err)
			return err
		}
		log.Info("send", string(reply), n)
		if ipc.IsSentinel(msg) {
			return nil
		}
	}
}
