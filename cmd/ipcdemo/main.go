// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Command ipcdemo exchanges text messages between processes over
// anonymous pipes, shared memory or a tcp session.
// Events are written to stdout as json lines, prompts and diagnostics go to stderr.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nxgtw/ipcdemo"
	"github.com/nxgtw/ipcdemo/config"
	"github.com/nxgtw/ipcdemo/eventlog"
	"github.com/nxgtw/ipcdemo/mailbox"
	"github.com/nxgtw/ipcdemo/pipe"
	"github.com/nxgtw/ipcdemo/session"
)

const usage = `usage: ipcdemo [-config file] command [args]
available commands:
  pipe
    starts a child process and talks to it over two pipes
  child {read fd} {write fd}
    the child side of 'pipe', is not meant to be started manually
  shm-writer
    puts console lines into the shared mailbox
  shm-reader
    prints messages from the shared mailbox
  server
    serves one client over tcp
  client
    sends console lines to the server
`

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

type app struct {
	cfg        config.Config
	configPath string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("ipcdemo", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}
	configPath := flags.String("config", "", "path to a toml configuration file")
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return exitUsage
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitFatal
	}
	a := &app{
		cfg:        cfg,
		configPath: *configPath,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
	}
	command, cmdArgs := flags.Arg(0), flags.Args()[1:]
	switch command {
	case "pipe":
		err = a.runPipe()
	case "child":
		if len(cmdArgs) != 2 {
			fmt.Fprintln(stderr, "child: must provide exactly two arguments")
			return exitUsage
		}
		err = a.runChild(cmdArgs[0], cmdArgs[1])
	case "shm-writer":
		err = a.runWriter()
	case "shm-reader":
		err = a.runReader()
	case "server":
		err = a.runServer()
	case "client":
		err = a.runClient()
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		flags.Usage()
		return exitUsage
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if ipc.IsSetupError(err) {
		return exitFatal
	}
	return exitOK
}

func (a *app) log(module eventlog.Module, role eventlog.Role) *eventlog.Log {
	return eventlog.New(a.stdout, module, role, eventlog.WithDiagnostics(a.stderr))
}

func (a *app) runPipe() error {
	log := a.log(eventlog.ModuleIPC, eventlog.RoleParent)
	exe, err := os.Executable()
	if err != nil {
		err = ipc.NewSetupError(pipe.StageSpawn, err)
		log.Error(pipe.StageSpawn, "failed to locate the executable", err)
		return err
	}
	var childArgs []string
	if len(a.configPath) > 0 {
		childArgs = append(childArgs, "-config", a.configPath)
	}
	childArgs = append(childArgs, "child")
	end, child, err := pipe.Start(exe, childArgs, a.stdout, a.stderr, log)
	if err != nil {
		return err
	}
	return pipe.RunParent(end, child, a.stdin, a.stderr, a.cfg.PipeBufferSize, log)
}

func (a *app) runChild(readArg, writeArg string) error {
	log := a.log(eventlog.ModuleIPC, eventlog.RoleChild)
	readFd, writeFd, err := pipe.ParseDescriptors(readArg, writeArg)
	if err == nil {
		var end *pipe.End
		if end, err = pipe.FromDescriptors(readFd, writeFd); err == nil {
			return pipe.RunChild(end, a.cfg.PipeBufferSize, log)
		}
	}
	log.Error(pipe.StageChildFds, "invalid inherited descriptors", err)
	return err
}

func (a *app) mailboxNames() mailbox.Names {
	return mailbox.Names{Region: a.cfg.MailboxName, Mutex: a.cfg.MutexName}
}

func (a *app) runWriter() error {
	log := a.log(eventlog.ModuleIPC, eventlog.RoleWriter)
	mb, err := mailbox.CreateLogged(a.mailboxNames(), a.cfg.MailboxCapacity, 0666, log)
	if err != nil {
		return err
	}
	defer mb.Destroy()
	fmt.Fprintf(a.stderr, "Writer iniciado. Digite mensagens ('sair' para encerrar), máximo de %d bytes:\n", mb.MaxMessageLen())
	return mailbox.RunWriter(mb, a.stdin, log)
}

func (a *app) runReader() error {
	log := a.log(eventlog.ModuleIPC, eventlog.RoleReader)
	mb, err := mailbox.OpenLogged(a.mailboxNames(), log)
	if err != nil {
		return err
	}
	defer mb.Close()
	fmt.Fprintln(a.stderr, "Reader iniciado. Aguardando mensagens...")
	return mailbox.RunReader(mb, a.cfg.PollInterval, log)
}

func (a *app) runServer() error {
	log := a.log(eventlog.ModuleSockets, eventlog.RoleServer)
	l, err := session.Listen(a.cfg.Host, a.cfg.Port, a.cfg.Backlog, log)
	if err != nil {
		return err
	}
	defer l.Close()
	fmt.Fprintf(a.stderr, "Servidor aguardando conexões em %s...\n", l.Addr())
	s, err := l.Accept()
	if err != nil {
		return err
	}
	return s.Serve(a.stderr, a.cfg.RecvBufferSize)
}

func (a *app) runClient() error {
	log := a.log(eventlog.ModuleSockets, eventlog.RoleClient)
	c, err := session.Dial(a.cfg.Host, a.cfg.Port, log)
	if err != nil {
		return err
	}
	return session.RunClient(c, a.stdin, a.stderr, a.cfg.RecvBufferSize)
}
