// Command manager creates, removes, or lists boxes, grounded on
// mbroker.c's manager client (manager.c in the original tree). Subcommand
// is the third positional argument, after the rendezvous pipe and the
// client pipe name: create, remove, or list.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/adred-codev/boxbroker/internal/wire"
	"github.com/adred-codev/boxbroker/pkg/wireclient"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <rendezvous_pipe> <pipe_name> create|remove <box_name>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s <rendezvous_pipe> <pipe_name> list\n", os.Args[0])
	}
	flag.Parse()
	args := flag.Args()
	if len(args) < 3 {
		flag.Usage()
		os.Exit(1)
	}

	rendezvousPipe, pipeName, cmd := args[0], args[1], args[2]

	var err error
	switch cmd {
	case "create":
		err = runBoxOp(rendezvousPipe, pipeName, wire.OpBoxCreate, args)
	case "remove":
		err = runBoxOp(rendezvousPipe, pipeName, wire.OpBoxRemove, args)
	case "list":
		err = runList(rendezvousPipe, pipeName)
	default:
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runBoxOp(rendezvousPipe, pipeName string, op wire.Opcode, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("box name required")
	}
	boxName := args[3]

	if err := wireclient.MakePipe(pipeName); err != nil {
		return err
	}
	defer os.Remove(pipeName)

	if err := wireclient.Register(rendezvousPipe, op, pipeName, boxName); err != nil {
		return err
	}

	pipe, err := wireclient.OpenOwnPipe(pipeName, os.O_RDONLY)
	if err != nil {
		return err
	}
	defer pipe.Close()

	if _, err := wireclient.ReadOpcode(pipe); err != nil {
		return fmt.Errorf("reading response opcode: %w", err)
	}
	returnCode, errMsg, err := wireclient.ReadBoxResponse(pipe)
	if err != nil {
		return err
	}
	if returnCode != 0 {
		return fmt.Errorf("%s", errMsg)
	}
	fmt.Printf("OK\n")
	return nil
}

func runList(rendezvousPipe, pipeName string) error {
	if err := wireclient.MakePipe(pipeName); err != nil {
		return err
	}
	defer os.Remove(pipeName)

	if err := wireclient.Register(rendezvousPipe, wire.OpBoxList, pipeName, ""); err != nil {
		return err
	}

	pipe, err := wireclient.OpenOwnPipe(pipeName, os.O_RDONLY)
	if err != nil {
		return err
	}
	defer pipe.Close()

	printed := false
	for {
		_, err := wireclient.ReadOpcode(pipe)
		if errors.Is(err, io.EOF) {
			break // broker closed the pipe with no frames: no boxes exist
		}
		if err != nil {
			return fmt.Errorf("reading list frame opcode: %w", err)
		}
		last, rec, err := wireclient.ReadBoxListFrame(pipe)
		if err != nil {
			return err
		}
		fmt.Printf("%-32s %8d bytes  %d pub  %d sub\n", rec.Name, rec.Size, rec.NPublishers, rec.NSubscribers)
		printed = true
		if last {
			break
		}
	}
	if !printed {
		fmt.Println("NO BOXES FOUND")
	}
	return nil
}
