// Command publisher sends lines from stdin to a box as PUB_MSG frames,
// grounded on mbroker.c's publisher client (pub.c in the original tree).
package main

import (
	"bufio"
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

	if err := wireclient.Register(rendezvousPipe, wire.OpPubReg, pipeName, boxName); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	pipe, err := wireclient.OpenOwnPipe(pipeName, os.O_WRONLY)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer pipe.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := wireclient.WritePubMessage(pipe, scanner.Text()); err != nil {
			fmt.Fprintf(os.Stderr, "publish failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "reading stdin: %v\n", err)
		os.Exit(1)
	}
}
