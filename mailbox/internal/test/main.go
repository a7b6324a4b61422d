// Copyright 2016 Aleksandr Demakin. All rights reserved.

package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nxgtw/ipcdemo/internal/test"
	"github.com/nxgtw/ipcdemo/mailbox"

	"github.com/pkg/errors"
)

var (
	regionName = flag.String("region", "", "shared memory object name")
	mutexName  = flag.String("mutex", "", "mutex name")
	timeout    = flag.Duration("timeout", 5*time.Second, "poll timeout")
)

const usage = `  test program for the mailbox.
available commands:
  write {data}
    puts data into the mailbox
  shutdown
    sets the shutdown flag
  poll
    waits for a message and prints it
  flood {n}
    writes n messages of different lengths, each made of one repeated byte,
    then sets the shutdown flag
data is passed as a continuous string of 2-symbol hex byte values like '01020A'
`

func open() (*mailbox.Mailbox, error) {
	return mailbox.Open(mailbox.Names{Region: *regionName, Mutex: *mutexName})
}

func write() error {
	if flag.NArg() != 2 {
		return errors.New("write: must provide exactly one argument")
	}
	data, err := testutil.StringToBytes(flag.Arg(1))
	if err != nil {
		return err
	}
	mb, err := open()
	if err != nil {
		return err
	}
	defer mb.Close()
	_, err = mb.Write(data)
	return err
}

func shutdown() error {
	mb, err := open()
	if err != nil {
		return err
	}
	defer mb.Close()
	return mb.SignalShutdown()
}

func poll() error {
	mb, err := open()
	if err != nil {
		return err
	}
	defer mb.Close()
	deadline := time.Now().Add(*timeout)
	for time.Now().Before(deadline) {
		msg, err := mb.PollRead()
		if err != nil {
			return err
		}
		if msg != nil {
			fmt.Print(testutil.BytesToString(msg))
			return nil
		}
		time.Sleep(time.Millisecond * 10)
	}
	return errors.New("poll: timed out")
}

func flood() error {
	if flag.NArg() != 2 {
		return errors.New("flood: must provide exactly one argument")
	}
	n, err := strconv.Atoi(flag.Arg(1))
	if err != nil {
		return err
	}
	mb, err := open()
	if err != nil {
		return err
	}
	defer mb.Close()
	for i := 0; i < n; i++ {
		msg := bytes.Repeat([]byte{byte('a' + i%26)}, 1+i%mb.MaxMessageLen())
		if _, err = mb.Write(msg); err != nil {
			return err
		}
	}
	return mb.SignalShutdown()
}

func runCommand() error {
	switch flag.Arg(0) {
	case "write":
		return write()
	case "shutdown":
		return shutdown()
	case "poll":
		return poll()
	case "flood":
		return flood()
	default:
		return errors.Errorf("unknown command %q", flag.Arg(0))
	}
}

func main() {
	flag.Parse()
	if len(*regionName) == 0 || len(*mutexName) == 0 || flag.NArg() == 0 {
		fmt.Print(usage)
		flag.Usage()
		os.Exit(1)
	}
	if err := runCommand(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
