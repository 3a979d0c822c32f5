// Package wireclient implements the client half of the broker's wire
// protocol: creating a client-owned named pipe, sending a registration
// frame on the rendezvous pipe, and reading whatever response frames the
// session produces. It is shared by the publisher, subscriber, and
// manager CLIs the way go-server-3's cmd binaries share internal/transport,
// trimmed down to a handful of blocking pipe calls instead of a server.
package wireclient

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/adred-codev/boxbroker/internal/wire"
)

// MakePipe creates a fresh named pipe at path, removing any stale file
// left behind by a previous run.
func MakePipe(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("wireclient: removing stale pipe %s: %w", path, err)
	}
	if err := syscall.Mkfifo(path, 0640); err != nil {
		return fmt.Errorf("wireclient: mkfifo %s: %w", path, err)
	}
	return nil
}

// Register opens the rendezvous pipe and writes one registration frame,
// then closes it. It opens O_WRONLY, which blocks until the broker's
// dispatcher has its own read end open.
func Register(rendezvousPath string, op wire.Opcode, clientPipe, boxName string) error {
	frame, err := wire.EncodeRegistration(op, clientPipe, boxName)
	if err != nil {
		return fmt.Errorf("wireclient: encode registration: %w", err)
	}
	f, err := os.OpenFile(rendezvousPath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("wireclient: open rendezvous pipe: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(frame); err != nil {
		return fmt.Errorf("wireclient: write registration: %w", err)
	}
	return nil
}

// OpenOwnPipe opens the client's own named pipe for reading or writing,
// blocking until the broker's session worker opens the other end.
func OpenOwnPipe(path string, flag int) (*os.File, error) {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("wireclient: open %s: %w", path, err)
	}
	return f, nil
}

// ReadBoxResponse reads one RES_BOX_CREAT/RES_BOX_REMOVE frame.
func ReadBoxResponse(r io.Reader) (returnCode int32, errMsg string, err error) {
	body := make([]byte, wire.ReturnCodeSize+wire.ErrorMsgSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, "", fmt.Errorf("wireclient: read box response: %w", err)
	}
	return wire.DecodeBoxResponse(body)
}

// ReadBoxListFrame reads one RES_BOX_LIST frame (opcode byte already
// consumed by the caller's framing loop, so body is last+record).
func ReadBoxListFrame(r io.Reader) (last bool, rec wire.BoxRecord, err error) {
	body := make([]byte, wire.LastSize+wire.BoxRecordSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return false, wire.BoxRecord{}, fmt.Errorf("wireclient: read list frame: %w", err)
	}
	return wire.DecodeBoxListFrame(body)
}

// ReadSubMessage reads one SUB_MSG frame body (opcode byte already
// consumed) and returns its decoded payload.
func ReadSubMessage(r io.Reader) (string, error) {
	body := make([]byte, wire.MsgMaxSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", fmt.Errorf("wireclient: read message: %w", err)
	}
	return wire.DecodeMessagePayload(body), nil
}

// WritePubMessage sends one PUB_MSG frame.
func WritePubMessage(w io.Writer, payload string) error {
	frame, err := wire.EncodeMessage(wire.OpPubMsg, payload)
	if err != nil {
		return fmt.Errorf("wireclient: encode message: %w", err)
	}
	_, err = w.Write(frame)
	return err
}

// ReadOpcode reads a single opcode byte, used by clients that must
// distinguish frame kinds before reading the rest of the body (the
// manager's list response loop).
func ReadOpcode(r io.Reader) (wire.Opcode, error) {
	buf := make([]byte, wire.OpcodeSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return wire.Opcode(buf[0]), nil
}
