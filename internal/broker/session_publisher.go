package broker

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/adred-codev/boxbroker/internal/store"
	"github.com/adred-codev/boxbroker/internal/wire"
)

// runPublisher admits reg as the single publisher of its box and relays
// PUB_MSG frames onto the box's byte-log until the client closes its
// pipe, grounded on mbroker.c's pub_connect. A publisher registration
// gets no response frame on the wire; rejection is silent.
func (w *Worker) runPublisher(ctx context.Context, reg PubReg) {
	r := w.broker.registry

	// Open the client's pipe first, before any admission check: the
	// client is blocked in its own open() call and a rejected publisher
	// still needs that open unblocked so it can observe the close.
	pipe, err := openClientPipe(reg.PipePath, os.O_RDONLY)
	if err != nil {
		w.endSession("publisher", "pipe_open_failed", err)
		return
	}
	defer pipe.Close()

	r.Lock()
	idx := r.LookupLocked(reg.BoxName)
	r.Unlock()
	if idx == -1 {
		w.endSession("publisher", "box_not_found", nil)
		return
	}

	if !r.TryAcquirePublisher(idx) {
		w.endSession("publisher", "publisher_slot_taken", nil)
		return
	}
	defer r.ReleasePublisher(idx)

	if w.broker.metrics != nil {
		w.broker.metrics.ActivePublishers.Inc()
		defer w.broker.metrics.ActivePublishers.Dec()
	}

	handle, err := w.broker.store.Open(reg.BoxName, store.ModeAppend)
	if err != nil {
		w.endSession("publisher", "store_open_failed", err)
		return
	}
	defer handle.Close()

	frame := make([]byte, wire.PubMsgFrameSize)
	for {
		if ctxDone(ctx) {
			w.endSession("publisher", "shutdown", nil)
			return
		}

		if _, err := io.ReadFull(pipe, frame); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				w.endSession("publisher", "client_closed", nil)
				return
			}
			w.endSession("publisher", "read_error", err)
			return
		}
		if wire.Opcode(frame[0]) != wire.OpPubMsg {
			w.broker.logger.Fatal("publisher sent unexpected opcode", zap.Uint8("opcode", frame[0]))
		}

		// Re-check the box wasn't removed while this worker was blocked
		// reading the pipe.
		r.Lock()
		if r.IsFree(idx) {
			r.Unlock()
			w.endSession("publisher", "box_removed", nil)
			return
		}
		r.Unlock()

		payload := wire.DecodeMessagePayload(frame[wire.OpcodeSize:])
		record := append([]byte(payload), 0) // NUL terminator is part of the on-disk record framing
		n, err := handle.Write(record)
		if err != nil {
			w.endSession("publisher", "store_write_failed", err)
			return
		}
		if n > 0 {
			r.GrowAndNotify(idx, n)
			if w.broker.metrics != nil {
				w.broker.metrics.MessagesPublished.Inc()
			}
		}
		if n < len(record) {
			// Box filled up mid-write: partial bytes already delivered
			// and subscribers notified above; the session ends here.
			w.endSession("publisher", "box_full", nil)
			return
		}
	}
}
