// Copyright 2016 Aleksandr Demakin. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	a := assert.New(t)
	cfg := Default()
	a.NoError(cfg.Validate())
	a.Equal("MinhaMemoria", cfg.MailboxName)
	a.Equal("MeuMutex", cfg.MutexName)
	a.Equal(256, cfg.MailboxCapacity)
	a.Equal(200*time.Millisecond, cfg.PollInterval)
	a.Equal("::1", cfg.Host)
	a.Equal(8080, cfg.Port)
	a.Equal(5, cfg.Backlog)
	a.Equal(5096, cfg.RecvBufferSize)
	a.Equal(256, cfg.PipeBufferSize)
}

func TestLoadFile(t *testing.T) {
	a := assert.New(t)
	path := filepath.Join(t.TempDir(), "ipcdemo.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mailbox_name = "test-region"
poll_interval = "50ms"
port = 9090
`), 0666))
	cfg, err := Load(path)
	if !a.NoError(err) {
		return
	}
	a.Equal("test-region", cfg.MailboxName)
	a.Equal("MeuMutex", cfg.MutexName)
	a.Equal(50*time.Millisecond, cfg.PollInterval)
	a.Equal(9090, cfg.Port)
}

func TestLoadEnv(t *testing.T) {
	a := assert.New(t)
	t.Setenv("IPCDEMO_MUTEX_NAME", "env-mutex")
	t.Setenv("IPCDEMO_BACKLOG", "16")
	cfg, err := Load("")
	if !a.NoError(err) {
		return
	}
	a.Equal("env-mutex", cfg.MutexName)
	a.Equal(16, cfg.Backlog)
	a.Equal("MinhaMemoria", cfg.MailboxName)
}

func TestLoadErrors(t *testing.T) {
	a := assert.New(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	a.Error(err)
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mailbox_capacity = 1`), 0666))
	_, err = Load(path)
	a.Error(err)
	t.Setenv("IPCDEMO_PORT", "not-a-number")
	_, err = Load("")
	a.Error(err)
}

func TestValidate(t *testing.T) {
	a := assert.New(t)
	cfg := Default()
	cfg.MailboxName = ""
	a.Error(cfg.Validate())
	cfg = Default()
	cfg.Port = 70000
	a.Error(cfg.Validate())
	cfg = Default()
	cfg.Port = 0
	a.NoError(cfg.Validate())
	cfg = Default()
	cfg.PollInterval = 0
	a.Error(cfg.Validate())
}
