// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux

package shm

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	maxNameLen       = 255
	defaultShmPath   = "/dev/shm/"
	cShmfsSuperMagic = 0x01021994
	cRamfsMagic      = 0x858458f6
)

var (
	shmPathOnce sync.Once
	shmPath     string
)

func doDestroyMemoryObject(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// glibc/sysdeps/posix/shm_open.c
func shmOpen(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag|unix.O_NOFOLLOW|unix.O_CLOEXEC, perm)
}

// glibc/sysdeps/posix/shm-directory.h
func shmName(name string) (string, error) {
	name = strings.TrimLeft(name, "/")
	nameLen := len(name)
	if nameLen == 0 || nameLen >= maxNameLen || strings.Contains(name, "/") {
		return "", errors.Errorf("invalid shm name %q", name)
	}
	dir, err := shmDirectory()
	if err != nil {
		return "", errors.Wrap(err, "error building shared memory name")
	}
	return dir + name, nil
}

func shmDirectory() (string, error) {
	shmPathOnce.Do(locateShmFs)
	if len(shmPath) == 0 {
		return shmPath, errors.New("error locating the shared memory path")
	}
	return shmPath, nil
}

// glibc/sysdeps/unix/sysv/linux/shm-directory.c
func locateShmFs() {
	if checkShmPath(defaultShmPath) {
		shmPath = defaultShmPath
	} else {
		shmPath = shmFsFromMounts()
	}
}

func checkShmPath(path string) bool {
	if len(path) == 0 {
		return false
	}
	var statfs unix.Statfs_t
	if err := unix.Statfs(path, &statfs); err != nil {
		return false
	}
	return isShmFs(int64(statfs.Type))
}

func isShmFs(fsType int64) bool {
	return fsType == cShmfsSuperMagic || fsType == cRamfsMagic
}

func shmFsFromMounts() string {
	fsFile, err := os.Open("/proc/mounts")
	if err != nil {
		if fsFile, err = os.Open("/etc/fstab"); err != nil {
			return ""
		}
	}
	defer fsFile.Close()
	return shmFsFromReader(fsFile)
}

func shmFsFromReader(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		dir, fstype, ok := scanMountRecord(scanner.Text())
		if !ok || (fstype != "tmpfs" && fstype != "shm") {
			continue
		}
		if checkShmPath(dir) {
			if !strings.HasSuffix(dir, "/") {
				dir += "/"
			}
			return dir
		}
	}
	return ""
}

// scanMountRecord returns the mount point and the fs type of an fstab-like record.
// comments and records with less than 3 fields are skipped.
func scanMountRecord(record string) (dir, fstype string, ok bool) {
	fields := strings.Fields(record)
	if len(fields) < 3 || strings.HasPrefix(fields[0], "#") {
		return "", "", false
	}
	return fields[1], fields[2], true
}
