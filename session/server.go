// Copyright 2016 Aleksandr Demakin. All rights reserved.

package session

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/nxgtw/ipcdemo"
	"github.com/nxgtw/ipcdemo/eventlog"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Listener accepts client connections.
type Listener struct {
	ln       net.Listener
	log      *eventlog.Log
	once     sync.Once
	closeErr error
}

// Listen creates a tcp socket, binds it to host:port and starts listening with the given backlog.
// host must be an ip address. Port 0 selects a free port.
// On error the socket is closed, and the error is *ipc.SetupError.
func Listen(host string, port, backlog int, log *eventlog.Log) (*Listener, error) {
	log = log.WithPeer(net.JoinHostPort(host, strconv.Itoa(port)))
	domain, sa, err := sockaddr(host, port)
	if err != nil {
		log.Error(StageSocket, "invalid address", err)
		return nil, ipc.NewSetupError(StageSocket, err)
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		log.Error(StageSocket, "socket creation failed", err)
		return nil, ipc.NewSetupError(StageSocket, errors.Wrap(err, "socket failed"))
	}
	log.Info(StageSocket, "socket created successfully", 0)
	fail := func(stage, msg string, err error) (*Listener, error) {
		unix.Close(fd)
		log.Error(stage, msg, err)
		return nil, ipc.NewSetupError(stage, errors.Wrap(err, msg))
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail(StageBind, "setsockopt failed", err)
	}
	if err = unix.Bind(fd, sa); err != nil {
		return fail(StageBind, "bind failed", err)
	}
	log.Info(StageBind, "bind successful", 0)
	if err = unix.Listen(fd, backlog); err != nil {
		return fail(StageListen, "listen failed", err)
	}
	file := os.NewFile(uintptr(fd), "tcp-listener")
	ln, err := net.FileListener(file)
	// FileListener works with a copy of the descriptor.
	file.Close()
	if err != nil {
		log.Error(StageListen, "listen failed", err)
		return nil, ipc.NewSetupError(StageListen, errors.Wrap(err, "failed to create listener"))
	}
	log = log.WithPeer(ln.Addr().String())
	log.Info(StageListen, "listening for connections", 0)
	return &Listener{ln: ln, log: log}, nil
}

func sockaddr(host string, port int) (int, unix.Sockaddr, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return 0, nil, errors.Errorf("invalid ip address %q", host)
	}
	if port < 0 || port > 0xffff {
		return 0, nil, errors.Errorf("invalid port %d", port)
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa, nil
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return unix.AF_INET6, sa, nil
}

// Addr returns the listening address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept waits for a client. Its failure is *ipc.SetupError.
func (l *Listener) Accept() (*Session, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		l.log.Error(StageAccept, "accept failed", err)
		return nil, ipc.NewSetupError(StageAccept, errors.Wrap(err, "accept failed"))
	}
	log := l.log.WithPeer(conn.RemoteAddr().String())
	log.Info(StageAccept, "client connected", 0)
	s := &Session{conn: conn, log: log}
	s.state.set(StateConnected)
	return s, nil
}

// Close closes the listening socket. Only the first call has effect.
func (l *Listener) Close() error {
	l.once.Do(func() {
		if l.closeErr = l.ln.Close(); l.closeErr != nil {
			l.log.Error("closesocket", "server socket close failed", l.closeErr)
			return
		}
		l.log.Info("closesocket", "server socket closed", 0)
	})
	return l.closeErr
}

// Session is the server side of a client connection.
type Session struct {
	conn     net.Conn
	log      *eventlog.Log
	state    stateHolder
	once     sync.Once
	closeErr error
}

// Serve reads commands and sends replies until the client sends "sair" or closes the connection.
// Received commands are printed to out. The connection is closed before return.
//	bufSize - maximum size of a command.
func (s *Session) Serve(out io.Writer, bufSize int) error {
	defer s.Close()
	if bufSize <= 0 {
		return errors.Errorf("invalid buffer size %d", bufSize)
	}
	s.state.set(StateServing)
	buf := make([]byte, bufSize)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "[INFO] Cliente fechou a conexão.")
				s.log.Info("peer_closed", "client closed the connection", 0)
				return nil
			}
			s.log.Error("recv", "recv failed", err)
			return errors.Wrap(err, "recv failed")
		}
		cmd := string(buf[:n])
		s.log.Info("recv", cmd, n)
		fmt.Fprintf(out, "Mensagem recebida do cliente: %s\n", cmd)
		reply, terminate := Reply(cmd)
		if terminate {
			s.state.set(StateClosing)
			fmt.Fprintln(out, reply)
		}
		sent, err := s.conn.Write([]byte(reply))
		if err != nil {
			s.log.Error("send", reply, err)
			return errors.Wrap(err, "send failed")
		}
		s.log.Info("send", reply, sent)
		if terminate {
			return nil
		}
	}
}

// State returns the current state of the session.
func (s *Session) State() State {
	return s.state.get()
}

// Close closes the client connection. Only the first call has effect.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.closeErr = closeConn(s.conn, s.log, "client socket")
		s.state.set(StateClosed)
	})
	return s.closeErr
}

func closeConn(conn net.Conn, log *eventlog.Log, what string) error {
	if err := conn.Close(); err != nil {
		log.Error("closesocket", what+" close failed", err)
		return errors.Wrap(err, "close failed")
	}
	log.Info("closesocket", what+" closed", 0)
	return nil
}
