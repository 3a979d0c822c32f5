package broker

import (
	"os"

	"github.com/adred-codev/boxbroker/internal/registry"
	"github.com/adred-codev/boxbroker/internal/wire"
)

// runBoxList replies with one RES_BOX_LIST frame per live box, in slot
// order, terminated by a frame with the last flag set, grounded on
// mbroker.c's box_listing. An empty registry gets no frames at all: the
// client reads EOF on its pipe and reports "no boxes" itself.
func (w *Worker) runBoxList(reg ListReq) {
	boxes := w.broker.registry.List()

	pipe, err := openClientPipe(reg.PipePath, os.O_WRONLY)
	if err != nil {
		w.endSession("box_list", "pipe_open_failed", err)
		return
	}
	defer pipe.Close()

	for i, b := range boxes {
		last := i == len(boxes)-1
		if err := writeBoxListFrame(pipe, last, b); err != nil {
			w.endSession("box_list", "write_failed", err)
			return
		}
	}
	w.endSession("box_list", "ok", nil)
}

func writeBoxListFrame(pipe *os.File, last bool, b registry.Box) error {
	frame, err := wire.EncodeBoxListFrame(last, wire.BoxRecord{
		Name:         b.Name,
		Size:         b.Size,
		NPublishers:  b.NPublishers,
		NSubscribers: b.NSubscribers,
	})
	if err != nil {
		return err
	}
	_, err = pipe.Write(frame)
	return err
}
