// Package broker implements the registration dispatcher, the bounded
// worker pool, and the five session state machines (publisher,
// subscriber, box-create, box-remove, box-list) that together make up
// the broker daemon's core.
package broker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/adred-codev/boxbroker/internal/config"
	"github.com/adred-codev/boxbroker/internal/metrics"
	"github.com/adred-codev/boxbroker/internal/queue"
	"github.com/adred-codev/boxbroker/internal/registry"
	"github.com/adred-codev/boxbroker/internal/store"
	"github.com/adred-codev/boxbroker/internal/sysguard"
)

// Broker owns every piece of shared state the dispatcher and workers
// touch: the byte-log store, the box registry, the registration queue,
// and the ambient logging/metrics/resource-guard stack, passed
// explicitly to every collaborator instead of held as process globals.
type Broker struct {
	cfg      config.Config
	logger   *zap.Logger
	metrics  *metrics.Registry
	guard    *sysguard.Guard

	store    *store.Store
	registry *registry.Registry
	queue    *queue.Queue

	dispatcher *Dispatcher

	wg sync.WaitGroup
}

// New builds a Broker from configuration and the ambient collaborators.
func New(cfg config.Config, logger *zap.Logger, metricsRegistry *metrics.Registry, guard *sysguard.Guard) *Broker {
	b := &Broker{
		cfg:      cfg,
		logger:   logger,
		metrics:  metricsRegistry,
		guard:    guard,
		store:    store.New(cfg.MaxBoxes),
		registry: registry.New(cfg.MaxBoxes),
		queue:    queue.New(cfg.QueueCapacity),
	}
	b.dispatcher = NewDispatcher(cfg.RendezvousPipe, b.queue, logger, metricsRegistry, guard)
	return b
}

// Run starts the dispatcher and the fixed worker pool, and blocks until
// ctx is cancelled (SIGINT/SIGTERM) or a fatal dispatcher error occurs.
// Shutdown is cooperative and does not join workers: a worker blocked in
// Queue.Dequeue or mid-session is abandoned at process exit rather than
// waited on, since in-flight sessions are allowed to finish or be
// abandoned without joining at shutdown.
func (b *Broker) Run(ctx context.Context) error {
	if err := b.dispatcher.Start(ctx); err != nil {
		return err
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < b.cfg.MaxSessions; i++ {
		b.wg.Add(1)
		go func(id int) {
			defer b.wg.Done()
			w := &Worker{id: id, broker: b}
			w.Run(workerCtx)
		}(i)
	}

	return b.dispatcher.Wait()
}

func (b *Broker) queueDepthGauge() {
	if b.metrics != nil {
		b.metrics.QueueDepth.Set(float64(b.queue.Len()))
	}
}
