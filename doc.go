// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package ipc holds the contract shared by the three local ipc channels of this module:
//	pipe    - a pair of anonymous pipes between a parent and a re-executed child.
//	mailbox - a single-slot shared memory mailbox, guarded by a named mutex.
//	session - a loopback tcp command/response session.
// Every channel reports its actions to an eventlog.Log as one json object per line.
// The subpackages shm, mmf and sync provide the shared memory and locking primitives
// the mailbox is built on. Only linux is supported.
package ipc
