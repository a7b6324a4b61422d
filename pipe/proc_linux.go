// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package pipe

import (
	"os/exec"
	"syscall"
)

// setPlatformSpecificAttrs makes the kernel kill the child, if the parent exits.
func setPlatformSpecificAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
	}
}
