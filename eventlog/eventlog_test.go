// Copyright 2016 Aleksandr Demakin. All rights reserved.

package eventlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 5, 17, 13, 45, 10, 500, time.FixedZone("BRT", -3*60*60))

func fixedClock() time.Time {
	return testTime
}

type testRecord struct {
	Module  string `json:"module"`
	Role    string `json:"role"`
	Level   string `json:"level"`
	Event   string `json:"event"`
	Ts      string `json:"ts"`
	Details struct {
		Msg   string  `json:"msg"`
		Bytes int     `json:"bytes"`
		Peer  *string `json:"peer"`
	} `json:"details"`
}

func decodeLines(t *testing.T, buff *bytes.Buffer) []testRecord {
	var result []testRecord
	for _, line := range strings.Split(strings.TrimSpace(buff.String()), "\n") {
		var r testRecord
		require.NoError(t, json.Unmarshal([]byte(line), &r), line)
		result = append(result, r)
	}
	return result
}

func TestLogInfo(t *testing.T) {
	a := assert.New(t)
	buff := bytes.NewBuffer(nil)
	l := New(buff, ModuleIPC, RoleParent, WithClock(fixedClock))
	l.Info("send", `say "oi"`, 8)
	records := decodeLines(t, buff)
	if !a.Len(records, 1) {
		return
	}
	r := records[0]
	a.Equal("ipc", r.Module)
	a.Equal("pai", r.Role)
	a.Equal("info", r.Level)
	a.Equal("send", r.Event)
	a.Equal("2024-05-17T16:45:10Z", r.Ts)
	a.Equal(`say "oi"`, r.Details.Msg)
	a.Equal(8, r.Details.Bytes)
	a.Nil(r.Details.Peer)
}

func TestLogWithPeer(t *testing.T) {
	a := assert.New(t)
	buff := bytes.NewBuffer(nil)
	l := New(buff, ModuleSockets, RoleServer, WithClock(fixedClock))
	l.WithPeer("[::1]:8080").Info("bind", "bound", 0)
	l.Info("listen", "listening", 0)
	records := decodeLines(t, buff)
	if !a.Len(records, 2) {
		return
	}
	if a.NotNil(records[0].Details.Peer) {
		a.Equal("[::1]:8080", *records[0].Details.Peer)
	}
	a.Nil(records[1].Details.Peer)
	a.Equal(RoleServer, l.Role())
}

func TestLogError(t *testing.T) {
	a := assert.New(t)
	buff := bytes.NewBuffer(nil)
	diag := bytes.NewBuffer(nil)
	l := New(buff, ModuleSockets, RoleClient, WithClock(fixedClock), WithDiagnostics(diag))
	l.Error("connect", "connect failed", errors.New("connection refused"))
	records := decodeLines(t, buff)
	if !a.Len(records, 1) {
		return
	}
	a.Equal("error", records[0].Level)
	a.Equal("connect", records[0].Event)
	a.Equal(0, records[0].Details.Bytes)
	a.Contains(diag.String(), "connect")
	a.Contains(diag.String(), "connection refused")
}

func TestLogEmit(t *testing.T) {
	a := assert.New(t)
	buff := bytes.NewBuffer(nil)
	l := New(buff, ModuleIPC, RoleReader, WithClock(fixedClock))
	l.Emit(Record{
		Module: ModuleIPC,
		Role:   RoleWriter,
		Level:  LevelInfo,
		Event:  "write",
		Time:   time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
		Msg:    "hello",
		Bytes:  5,
		Peer:   PeerSharedMemory,
	})
	records := decodeLines(t, buff)
	if !a.Len(records, 1) {
		return
	}
	a.Equal("writer", records[0].Role)
	a.Equal("2001-01-01T00:00:00Z", records[0].Ts)
	if a.NotNil(records[0].Details.Peer) {
		a.Equal("shared_memory", *records[0].Details.Peer)
	}
}

func TestNopLog(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("x", "y", errors.New("z"))
	})
}
