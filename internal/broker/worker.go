package broker

import (
	"context"

	"go.uber.org/zap"
)

// Worker is one of MaxSessions fixed goroutines draining the registration
// queue and running each registration's session to completion: a bounded
// worker pool with one session per worker, run to completion.
type Worker struct {
	id     int
	broker *Broker
}

// Run dequeues registrations until ctx is cancelled. A worker that
// dequeues a registration after ctx is cancelled drops it and returns;
// the dispatcher's own shutdown stops new work from arriving.
func (w *Worker) Run(ctx context.Context) {
	for {
		item := w.broker.queue.Dequeue()
		w.broker.queueDepthGauge()

		if ctx.Err() != nil {
			return
		}

		switch reg := item.(type) {
		case PubReg:
			w.runPublisher(ctx, reg)
		case SubReg:
			w.runSubscriber(ctx, reg)
		case CreateReq:
			w.runBoxCreate(reg)
		case RemoveReq:
			w.runBoxRemove(reg)
		case ListReq:
			w.runBoxList(reg)
		default:
			w.broker.logger.Error("worker received unknown registration type", zap.Int("worker", w.id))
		}
	}
}
