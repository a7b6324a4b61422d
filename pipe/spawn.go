// Copyright 2016 Aleksandr Demakin. All rights reserved.

package pipe

import (
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/nxgtw/ipcdemo"

	"github.com/pkg/errors"
)

// Spawn starts exe with args followed by the child's descriptor numbers.
// The child's ends become its descriptors ChildReadFd and ChildWriteFd.
// The parent's copies of the child ends are closed whether the start succeeds or not.
func Spawn(exe string, args []string, ends *ChildEnds, stdout, stderr io.Writer) (*exec.Cmd, error) {
	defer ends.Close()
	args = append(append([]string(nil), args...), strconv.Itoa(ChildReadFd), strconv.Itoa(ChildWriteFd))
	cmd := exec.Command(exe, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.ExtraFiles = []*os.File{ends.Read, ends.Write}
	setPlatformSpecificAttrs(cmd)
	if err := cmd.Start(); err != nil {
		return nil, ipc.NewSetupError(StageSpawn, errors.Wrapf(err, "failed to start %q", exe))
	}
	return cmd, nil
}
