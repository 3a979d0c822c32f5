// Command subscriber prints SUB_MSG frames delivered for a box to
// stdout, one per line, until the broker closes the pipe (box removed),
// grounded on mbroker.c's subscriber client (sub.c in the original tree).
package main

import (
	"fmt"
	"os"

	"github.com/adred-codev/boxbroker/internal/wire"
	"github.com/adred-codev/boxbroker/pkg/wireclient"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "usage: %s <rendezvous_pipe> <pipe_name> <box_name>\n", os.Args[0])
		os.Exit(1)
	}
	rendezvousPipe, pipeName, boxName := os.Args[1], os.Args[2], os.Args[3]

	if err := wireclient.MakePipe(pipeName); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer os.Remove(pipeName)

	if err := wireclient.Register(rendezvousPipe, wire.OpSubReg, pipeName, boxName); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	pipe, err := wireclient.OpenOwnPipe(pipeName, os.O_RDONLY)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer pipe.Close()

	for {
		op, err := wireclient.ReadOpcode(pipe)
		if err != nil {
			return // broker closed the pipe: box removed or broker shut down
		}
		if op != wire.OpSubMsg {
			fmt.Fprintf(os.Stderr, "unexpected opcode %v\n", op)
			return
		}
		payload, err := wireclient.ReadSubMessage(pipe)
		if err != nil {
			return
		}
		fmt.Println(payload)
	}
}
