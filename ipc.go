// Copyright 2016 Aleksandr Demakin. All rights reserved.

package ipc

import (
	"strings"

	"github.com/samber/lo"
)

// Destroyer is an object which can be permanently removed.
type Destroyer interface {
	Destroy() error
}

const (
	// SentinelSair is the message, which ends a session cooperatively.
	SentinelSair = "sair"
	// SentinelExit is accepted by the pipe channel as well as SentinelSair.
	SentinelExit = "exit"
)

var sentinels = []string{SentinelSair, SentinelExit}

// IsSentinel returns true, if msg is one of the termination messages.
// A trailing line break, which may come from a console, is ignored.
func IsSentinel(msg []byte) bool {
	return lo.Contains(sentinels, strings.TrimRight(string(msg), "\r\n"))
}
