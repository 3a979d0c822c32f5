package broker

import (
	"errors"
	"os"

	"github.com/adred-codev/boxbroker/internal/registry"
	"github.com/adred-codev/boxbroker/internal/store"
	"github.com/adred-codev/boxbroker/internal/wire"
)

// runBoxCreate creates reg.BoxName in both the registry and the
// byte-log store and replies with a RES_BOX_CREAT frame, grounded on
// mbroker.c's box_creation.
func (w *Worker) runBoxCreate(reg CreateReq) {
	r := w.broker.registry

	idx, err := r.Create(reg.BoxName)
	var returnCode int32
	var errMsg string

	switch {
	case errors.Is(err, registry.ErrAlreadyExists):
		returnCode, errMsg = -1, wire.ErrBoxAlreadyExists
	case errors.Is(err, registry.ErrFull):
		returnCode, errMsg = -1, wire.ErrBoxCouldNotCreate
	case err != nil:
		returnCode, errMsg = -1, wire.ErrBoxCouldNotCreate
	default:
		handle, openErr := w.broker.store.Open(reg.BoxName, store.ModeCreate)
		if openErr != nil {
			r.Lock()
			r.Remove(idx)
			r.Unlock()
			returnCode, errMsg = -1, wire.ErrBoxCouldNotCreate
		} else {
			// Close the log handle immediately: box-create only brings
			// the box into existence, it doesn't hold it open. Leaving
			// it open would pin the inode's open count forever and make
			// every future box-remove on this name fail as still-linked.
			handle.Close()
			if w.broker.metrics != nil {
				w.broker.metrics.ActiveBoxes.Inc()
			}
		}
	}

	w.respondBoxOp("box_create", wire.OpResBoxCreate, reg.PipePath, returnCode, errMsg)
}

// respondBoxOp opens the manager client's pipe and writes a box-op
// response frame (RES_BOX_CREAT or RES_BOX_REMOVE).
func (w *Worker) respondBoxOp(role string, op wire.Opcode, pipePath string, returnCode int32, errMsg string) {
	pipe, err := openClientPipe(pipePath, os.O_WRONLY)
	if err != nil {
		w.endSession(role, "pipe_open_failed", err)
		return
	}
	defer pipe.Close()

	frame, err := wire.EncodeBoxResponse(op, returnCode, errMsg)
	if err != nil {
		w.endSession(role, "encode_failed", err)
		return
	}
	if _, err := pipe.Write(frame); err != nil {
		w.endSession(role, "write_failed", err)
		return
	}
	if returnCode == 0 {
		w.endSession(role, "ok", nil)
	} else {
		w.endSession(role, "rejected", nil)
	}
}
