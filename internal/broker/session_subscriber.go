package broker

import (
	"bytes"
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/adred-codev/boxbroker/internal/wire"
)

// runSubscriber admits reg as a subscriber of its box and relays the
// box's bytes, those already stored and those published later, as
// SUB_MSG frames until the box is removed or the
// client's pipe breaks, grounded on mbroker.c's sub_connect. Delivery is
// ordered and gapless: the handle's own read offset is the subscriber's
// only position, advanced strictly forward.
func (w *Worker) runSubscriber(ctx context.Context, reg SubReg) {
	r := w.broker.registry

	// Open the client's pipe before any admission check: the client is
	// blocked in its own open() call and a rejected subscriber still
	// needs that open unblocked so it can observe the close.
	pipe, err := openClientPipe(reg.PipePath, os.O_WRONLY)
	if err != nil {
		w.endSession("subscriber", "pipe_open_failed", err)
		return
	}
	defer pipe.Close()

	r.Lock()
	idx := r.LookupLocked(reg.BoxName)
	if idx == -1 {
		r.Unlock()
		w.endSession("subscriber", "box_not_found", nil)
		return
	}
	r.Unlock()

	handle, err := w.broker.store.Open(reg.BoxName, 0)
	if err != nil {
		w.endSession("subscriber", "store_open_failed", err)
		return
	}
	defer handle.Close()

	r.AddSubscriber(idx)
	if w.broker.metrics != nil {
		w.broker.metrics.ActiveSubscribers.Inc()
		defer w.broker.metrics.ActiveSubscribers.Dec()
	}
	defer r.RemoveSubscriber(idx)

	buf := make([]byte, wire.BoxSize)
	var pending []byte // bytes read so far that don't yet contain a trailing NUL

	for {
		if ctxDone(ctx) {
			w.endSession("subscriber", "shutdown", nil)
			return
		}

		n, err := handle.Read(buf)
		if err != nil {
			w.endSession("subscriber", "store_read_failed", err)
			return
		}

		if n == 0 {
			r.Lock()
			if r.IsFree(idx) {
				r.Unlock()
				w.endSession("subscriber", "box_removed", nil)
				return
			}
			// Re-check under lock in case bytes were appended between
			// the unlocked Read above and taking the lock, to avoid
			// sleeping through a wakeup that already happened.
			if n2, _ := handle.Read(buf); n2 > 0 {
				r.Unlock()
				newPending, ok := w.deliverRecords(pipe, pending, buf[:n2])
				if !ok {
					w.endSession("subscriber", "client_gone", nil)
					return
				}
				pending = newPending
				continue
			}
			r.Wait(idx)
			if r.IsFree(idx) {
				r.Unlock()
				w.endSession("subscriber", "box_removed", nil)
				return
			}
			r.Unlock()
			continue
		}

		newPending, ok := w.deliverRecords(pipe, pending, buf[:n])
		if !ok {
			w.endSession("subscriber", "client_gone", nil)
			return
		}
		pending = newPending
	}
}

// deliverRecords tokenises chunk (appended to any carried-over pending
// bytes) on NUL bytes, emitting one SUB_MSG frame per complete record and
// returning whatever trailing bytes don't yet end in a NUL so the next
// read can complete them, since a single read may land mid-record. ok is
// false if a delivery failed (broken pipe).
func (w *Worker) deliverRecords(pipe *os.File, pending, chunk []byte) (newPending []byte, ok bool) {
	data := append(pending, chunk...)
	for {
		i := bytes.IndexByte(data, 0)
		if i < 0 {
			return data, true
		}
		if !w.deliver(pipe, data[:i]) {
			return pending, false
		}
		data = data[i+1:]
	}
}

// deliver sends one SUB_MSG frame and reports whether the send succeeded.
func (w *Worker) deliver(pipe *os.File, payload []byte) bool {
	frame, err := wire.EncodeMessage(wire.OpSubMsg, string(payload))
	if err != nil {
		w.broker.logger.Error("encoding SUB_MSG frame", zap.Error(err))
		return false
	}
	if _, err := pipe.Write(frame); err != nil {
		return false
	}
	if w.broker.metrics != nil {
		w.broker.metrics.MessagesDelivered.Inc()
	}
	return true
}
