package broker

import (
	"github.com/adred-codev/boxbroker/internal/wire"
)

// runBoxRemove removes reg.BoxName and replies with a RES_BOX_REMOVE
// frame. The registry slot is freed unconditionally once the box is
// found; not-found is the only rejection. A still-linked error from the
// store unlink (a publisher or subscriber still holds a handle) is
// ignored: the store then keeps the inode mapped under the name, and a
// later create of the same name reuses it and starts it empty.
func (w *Worker) runBoxRemove(reg RemoveReq) {
	r := w.broker.registry

	r.Lock()
	idx := r.LookupLocked(reg.BoxName)
	if idx == -1 {
		r.Unlock()
		w.respondBoxOp("box_remove", wire.OpResBoxRemove, reg.PipePath, -1, wire.ErrBoxNotFound)
		return
	}
	r.Remove(idx)
	r.Unlock()

	_ = w.broker.store.Unlink(reg.BoxName)

	if w.broker.metrics != nil {
		w.broker.metrics.ActiveBoxes.Dec()
	}

	w.respondBoxOp("box_remove", wire.OpResBoxRemove, reg.PipePath, 0, "")
}
