// Copyright 2016 Aleksandr Demakin. All rights reserved.

package ipc

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsSentinel(t *testing.T) {
	a := assert.New(t)
	a.True(IsSentinel([]byte("sair")))
	a.True(IsSentinel([]byte("exit")))
	a.True(IsSentinel([]byte("sair\r\n")))
	a.False(IsSentinel([]byte("Sair")))
	a.False(IsSentinel([]byte(" sair")))
	a.False(IsSentinel(nil))
}

func TestSetupError(t *testing.T) {
	a := assert.New(t)
	a.Nil(NewSetupError("bind", nil))
	err := NewSetupError("bind", io.ErrClosedPipe)
	a.True(IsSetupError(err))
	a.Equal("bind", SetupStage(err))
	a.Equal("bind: io: read/write on closed pipe", err.Error())
	a.Equal(io.ErrClosedPipe, errors.Cause(err))
	a.True(errors.Is(err, io.ErrClosedPipe))

	wrapped := errors.Wrap(err, "server failed")
	a.True(IsSetupError(wrapped))
	a.Equal("bind", SetupStage(wrapped))
	a.False(IsSetupError(io.EOF))
	a.Equal("", SetupStage(io.EOF))
	a.False(IsSetupError(ErrPeerClosed))
}
