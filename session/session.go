// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package session implements a command/response session over a loopback tcp connection.
// Every read on the server is one command. Each command gets exactly one reply.
package session

import (
	"sync/atomic"

	"github.com/samber/lo"
)

// setup stages. they are also the names of log events.
const (
	StageSocket  = "socket"
	StageBind    = "bind"
	StageListen  = "listen"
	StageAccept  = "accept"
	StageConnect = "connect"
)

// commands and replies.
const (
	CommandHello = "oi"
	CommandPing  = "ping"
	CommandQuit  = "sair"

	ReplyHello   = "hello"
	ReplyPong    = "pong"
	ReplyClosing = "Fechando socket..."
	ReplyUnknown = "Comando Desconhecido"
)

var replies = map[string]string{
	CommandHello: ReplyHello,
	CommandPing:  ReplyPong,
	CommandQuit:  ReplyClosing,
}

// Reply returns the server's reply to cmd.
// terminate is true, if the session must end after the reply is sent.
// Commands are matched exactly, without trimming.
func Reply(cmd string) (reply string, terminate bool) {
	return lo.ValueOr(replies, cmd, ReplyUnknown), cmd == CommandQuit
}

// State is a state of a connection.
type State int32

// connection states. StateConnecting is seen only on a client before Connect,
// a server session starts connected.
const (
	StateConnecting State = iota
	StateConnected
	StateServing
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateServing:
		return "serving"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type stateHolder struct {
	value atomic.Int32
}

func (h *stateHolder) set(s State) {
	h.value.Store(int32(s))
}

func (h *stateHolder) get() State {
	return State(h.value.Load())
}
