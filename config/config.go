// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package config holds the names, sizes and addresses used by the ipc channels.
// Values come from the defaults, then from an optional toml file, then from IPCDEMO_* environment variables.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	env "github.com/Netflix/go-env"
	"github.com/pkg/errors"
)

// defaults
const (
	DefaultMailboxName     = "MinhaMemoria"
	DefaultMutexName       = "MeuMutex"
	DefaultMailboxCapacity = 256
	DefaultPollInterval    = 200 * time.Millisecond
	DefaultHost            = "::1"
	DefaultPort            = 8080
	DefaultBacklog         = 5
	DefaultRecvBufferSize  = 5096
	DefaultPipeBufferSize  = 256
)

// Config is passed to every channel at startup.
type Config struct {
	// MailboxName is the name of the shared memory region.
	MailboxName string `toml:"mailbox_name" env:"IPCDEMO_MAILBOX_NAME"`
	// MutexName is the name of the mutex, which guards the region.
	MutexName string `toml:"mutex_name" env:"IPCDEMO_MUTEX_NAME"`
	// MailboxCapacity is the size of the message slot.
	MailboxCapacity int `toml:"mailbox_capacity" env:"IPCDEMO_MAILBOX_CAPACITY"`
	// PollInterval is the delay between reader's polls.
	PollInterval time.Duration `toml:"poll_interval" env:"IPCDEMO_POLL_INTERVAL"`

	Host           string `toml:"host" env:"IPCDEMO_HOST"`
	Port           int    `toml:"port" env:"IPCDEMO_PORT"`
	Backlog        int    `toml:"backlog" env:"IPCDEMO_BACKLOG"`
	RecvBufferSize int    `toml:"recv_buffer_size" env:"IPCDEMO_RECV_BUFFER_SIZE"`

	PipeBufferSize int `toml:"pipe_buffer_size" env:"IPCDEMO_PIPE_BUFFER_SIZE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MailboxName:     DefaultMailboxName,
		MutexName:       DefaultMutexName,
		MailboxCapacity: DefaultMailboxCapacity,
		PollInterval:    DefaultPollInterval,
		Host:            DefaultHost,
		Port:            DefaultPort,
		Backlog:         DefaultBacklog,
		RecvBufferSize:  DefaultRecvBufferSize,
		PipeBufferSize:  DefaultPipeBufferSize,
	}
}

// Load builds the configuration. path may be empty, then only defaults and environment are used.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "config parse failed (%s)", path)
		}
	}
	if err := applyEnv(&cfg, os.Environ()); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, environ []string) error {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return errors.Wrap(err, "invalid environment")
	}
	if err = env.Unmarshal(es, cfg); err != nil {
		return errors.Wrap(err, "config env parse failed")
	}
	return nil
}

// Validate checks, that the values can be used.
func (c Config) Validate() error {
	switch {
	case c.MailboxName == "":
		return errors.New("mailbox name must not be empty")
	case c.MutexName == "":
		return errors.New("mutex name must not be empty")
	case c.MailboxCapacity < 2:
		return errors.Errorf("mailbox capacity %d is too small", c.MailboxCapacity)
	case c.PollInterval <= 0:
		return errors.Errorf("invalid poll interval %v", c.PollInterval)
	case c.Port < 0 || c.Port > 65535:
		return errors.Errorf("invalid port %d", c.Port)
	case c.Backlog <= 0:
		return errors.Errorf("invalid backlog %d", c.Backlog)
	case c.RecvBufferSize <= 0:
		return errors.Errorf("invalid receive buffer size %d", c.RecvBufferSize)
	case c.PipeBufferSize < 2:
		return errors.Errorf("pipe buffer size %d is too small", c.PipeBufferSize)
	}
	return nil
}
