// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package eventlog writes structured event records of ipc channels.
// Every record is one json object on its own line:
//	{"level":"info","module":"ipc","role":"pai","event":"send","ts":"2006-01-02T15:04:05Z",
//	 "details":{"msg":"oi","bytes":2,"peer":"shared_memory"}}
// Errors are also reported as short human readable diagnostics on a separate writer.
package eventlog

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Module is the value of the 'module' field.
type Module string

// Role is the value of the 'role' field.
type Role string

// Level is the value of the 'level' field.
type Level string

// modules
const (
	ModuleIPC     Module = "ipc"
	ModuleSockets Module = "sockets"
)

// roles
const (
	RoleParent Role = "pai"
	RoleChild  Role = "filho"
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
	RoleClient Role = "client"
	RoleServer Role = "server"
)

// levels
const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// well-known peer names.
const (
	PeerSystem       = "system"
	PeerSharedMemory = "shared_memory"
)

// Record is a single event of a channel.
type Record struct {
	Module Module
	Role   Role
	Level  Level
	Event  string
	Time   time.Time
	Msg    string
	Bytes  int
	// Peer is omitted, if empty.
	Peer string
}

// Log emits records for one module and role.
type Log struct {
	module Module
	role   Role
	peer   string
	events zerolog.Logger
	diag   zerolog.Logger
	now    func() time.Time
}

// Option changes a Log.
type Option func(*Log)

// WithDiagnostics sets the writer for human readable error diagnostics.
// By default diagnostics are discarded.
func WithDiagnostics(w io.Writer) Option {
	return func(l *Log) {
		l.diag = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Str("role", string(l.role)).Logger()
	}
}

// WithClock replaces the source of record timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// New returns a log, which writes records of the given module and role to w.
func New(w io.Writer, module Module, role Role, opts ...Option) *Log {
	l := &Log{
		module: module,
		role:   role,
		events: zerolog.New(w),
		diag:   zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Nop returns a log, which discards everything.
func Nop() *Log {
	return New(io.Discard, "", "")
}

// WithPeer returns a copy of the log, which sets peer on every record it emits.
func (l *Log) WithPeer(peer string) *Log {
	result := *l
	result.peer = peer
	return &result
}

// Role returns the role of the log.
func (l *Log) Role() Role {
	return l.role
}

// Info emits an info record.
func (l *Log) Info(event, msg string, bytes int) {
	l.Emit(l.record(LevelInfo, event, msg, bytes))
}

// Error emits an error record and a diagnostic with err's text.
func (l *Log) Error(event, msg string, err error) {
	l.Emit(l.record(LevelError, event, msg, 0))
	l.diag.Error().Err(err).Msg(event)
}

// Emit writes r as is. Zero time is replaced by the current time.
func (l *Log) Emit(r Record) {
	if r.Time.IsZero() {
		r.Time = l.now()
	}
	level := zerolog.InfoLevel
	if r.Level == LevelError {
		level = zerolog.ErrorLevel
	}
	details := zerolog.Dict().Str("msg", r.Msg).Int("bytes", r.Bytes)
	if r.Peer != "" {
		details = details.Str("peer", r.Peer)
	}
	l.events.WithLevel(level).
		Str("module", string(r.Module)).
		Str("role", string(r.Role)).
		Str("event", r.Event).
		Str("ts", r.Time.UTC().Format(time.RFC3339)).
		Dict("details", details).
		Send()
}

func (l *Log) record(level Level, event, msg string, bytes int) Record {
	return Record{
		Module: l.module,
		Role:   l.role,
		Level:  level,
		Event:  event,
		Msg:    msg,
		Bytes:  bytes,
		Peer:   l.peer,
	}
}
