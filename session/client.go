// Copyright 2016 Aleksandr Demakin. All rights reserved.

package session

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"

	"github.com/nxgtw/ipcdemo"
	"github.com/nxgtw/ipcdemo/eventlog"
	"github.com/nxgtw/ipcdemo/internal/console"

	"github.com/pkg/errors"
)

const clientPrompt = "Digite a mensagem para enviar ao servidor: "

// Client is the client side of a session.
type Client struct {
	conn     net.Conn
	log      *eventlog.Log
	state    stateHolder
	once     sync.Once
	closeErr error
}

// NewClient returns a client, which is not connected yet. Its state is StateConnecting.
func NewClient(log *eventlog.Log) *Client {
	c := &Client{log: log}
	c.state.set(StateConnecting)
	return c
}

// Dial connects to the server at host:port.
// Its failure is *ipc.SetupError with stage "socket" or "connect".
func Dial(host string, port int, log *eventlog.Log) (*Client, error) {
	c := NewClient(log)
	if err := c.Connect(host, port); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect connects the client to the server at host:port.
// On success the state becomes StateConnected, on failure it is StateClosed,
// and the error is *ipc.SetupError with stage "socket" or "connect".
// A client can be connected only once.
func (c *Client) Connect(host string, port int) error {
	if st := c.state.get(); st != StateConnecting {
		return errors.Errorf("client is %s", st)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	log := c.log.WithPeer(addr)
	var socketCreated bool
	dialer := net.Dialer{
		Control: func(string, string, syscall.RawConn) error {
			if !socketCreated {
				socketCreated = true
				log.Info(StageSocket, "socket created successfully", 0)
			}
			return nil
		},
	}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		stage := StageSocket
		if socketCreated {
			stage = StageConnect
		}
		log.Error(stage, "connect failed", err)
		c.state.set(StateClosed)
		return ipc.NewSetupError(stage, errors.Wrapf(err, "failed to connect to %s", addr))
	}
	log.Info(StageConnect, "connected to server", 0)
	c.conn, c.log = conn, log
	c.state.set(StateConnected)
	return nil
}

// RunClient sends console lines from in to the server and prints the replies to out.
// Every line is sent as is, and exactly one reply is read for it.
// It stops, when the server replies with ReplyClosing, closes the connection,
// or when the input ends. Empty lines are skipped. The connection is closed before return.
//	bufSize - maximum size of a reply.
func RunClient(c *Client, in io.Reader, out io.Writer, bufSize int) error {
	defer c.Close()
	if c.conn == nil {
		return errors.New("client is not connected")
	}
	if bufSize <= 0 {
		return errors.Errorf("invalid buffer size %d", bufSize)
	}
	lines := console.NewLineReader(in)
	buf := make([]byte, bufSize)
	for {
		fmt.Fprint(out, clientPrompt)
		line, ok := lines.Next()
		if !ok {
			return errors.Wrap(lines.Err(), "failed to read input")
		}
		if len(line) == 0 {
			continue
		}
		n, err := c.conn.Write([]byte(line))
		if err != nil {
			c.log.Error("send", "send failed", err)
			return errors.Wrap(err, "send failed")
		}
		c.log.Info("send", line, n)
		if n, err = c.conn.Read(buf); err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "[INFO] Servidor fechou a conexão.")
				c.log.Info("server_closed", "server closed the connection", 0)
				return nil
			}
			c.log.Error("recv", "recv failed", err)
			return errors.Wrap(err, "recv failed")
		}
		reply := string(buf[:n])
		fmt.Fprintf(out, "Mensagem recebida do servidor: %s\n", reply)
		c.log.Info("recv", reply, n)
		if reply == ReplyClosing {
			c.state.set(StateClosing)
			c.log.Info("server_signal", "server requested to close the connection", 0)
			return nil
		}
	}
}

// State returns the current state of the client.
func (c *Client) State() State {
	return c.state.get()
}

// Close closes the connection. Only the first call has effect.
func (c *Client) Close() error {
	c.once.Do(func() {
		if c.conn != nil {
			c.closeErr = closeConn(c.conn, c.log, "client socket")
		}
		c.state.set(StateClosed)
	})
	return c.closeErr
}
