package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/adred-codev/boxbroker/internal/metrics"
	"github.com/adred-codev/boxbroker/internal/queue"
	"github.com/adred-codev/boxbroker/internal/sysguard"
	"github.com/adred-codev/boxbroker/internal/wire"
)

// ErrInvalidOpcode is returned when the rendezvous pipe yields a byte that
// isn't one of the five registration opcodes, a fatal protocol violation.
var ErrInvalidOpcode = errors.New("dispatcher: invalid opcode on rendezvous pipe")

// Dispatcher is the daemon's entry task: it owns the rendezvous pipe and
// turns framed registration requests into queued Registration values.
// Grounded on mbroker.c's main() loop.
type Dispatcher struct {
	path    string
	queue   *queue.Queue
	logger  *zap.Logger
	metrics *metrics.Registry
	guard   *sysguard.Guard

	readFile  *os.File
	selfWrite *os.File // broker's own write handle, so reads never see EOF for lack of writers

	runErr  error
	doneCh  chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// NewDispatcher creates a dispatcher bound to the given rendezvous pipe
// path.
func NewDispatcher(path string, q *queue.Queue, logger *zap.Logger, metricsRegistry *metrics.Registry, guard *sysguard.Guard) *Dispatcher {
	return &Dispatcher{
		path:    path,
		queue:   q,
		logger:  logger,
		metrics: metricsRegistry,
		guard:   guard,
		doneCh:  make(chan struct{}),
	}
}

// Start creates the rendezvous pipe and opens it for reading and writing,
// then launches the accept loop in a goroutine. It returns once the pipe
// is ready, matching a synchronous transport-server Start rather than
// firing the accept loop fully detached.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.guard != nil {
		if err := d.guard.Check(); err != nil {
			return fmt.Errorf("dispatcher: resource check before startup: %w", err)
		}
	}

	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("dispatcher: removing stale rendezvous pipe: %w", err)
	}
	if err := syscall.Mkfifo(d.path, 0640); err != nil {
		return fmt.Errorf("dispatcher: mkfifo %s: %w", d.path, err)
	}

	readFile, err := os.OpenFile(d.path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("dispatcher: open rendezvous pipe for read: %w", err)
	}
	selfWrite, err := os.OpenFile(d.path, os.O_WRONLY, 0)
	if err != nil {
		readFile.Close()
		return fmt.Errorf("dispatcher: open rendezvous pipe for self-write: %w", err)
	}

	d.readFile = readFile
	d.selfWrite = selfWrite

	go d.acceptLoop(ctx)
	return nil
}

// Wait blocks until the accept loop exits (fatal error or shutdown) and
// returns the error that stopped it, or nil on a clean SIGINT/SIGTERM
// shutdown.
func (d *Dispatcher) Wait() error {
	<-d.doneCh
	return d.runErr
}

func (d *Dispatcher) acceptLoop(ctx context.Context) {
	defer d.shutdown()

	go func() {
		<-ctx.Done()
		d.closeDescriptors()
	}()

	opcodeBuf := make([]byte, wire.OpcodeSize)
	for {
		if _, err := io.ReadFull(d.readFile, opcodeBuf); err != nil {
			if ctx.Err() != nil {
				return // cooperative shutdown closed our read descriptor
			}
			d.runErr = fmt.Errorf("dispatcher: read opcode: %w", err)
			d.logger.Error("rendezvous pipe read failed", zap.Error(err))
			if d.metrics != nil {
				d.metrics.DispatcherFatal.Inc()
			}
			return
		}

		op := wire.Opcode(opcodeBuf[0])
		var rest int
		switch op {
		case wire.OpPubReg, wire.OpSubReg, wire.OpBoxCreate, wire.OpBoxRemove:
			rest = wire.RegistrationSize - wire.OpcodeSize
		case wire.OpBoxList:
			rest = wire.ListRequestSize - wire.OpcodeSize
		default:
			d.runErr = fmt.Errorf("%w: %v", ErrInvalidOpcode, op)
			d.logger.Error("invalid opcode on rendezvous pipe", zap.Uint8("opcode", byte(op)))
			if d.metrics != nil {
				d.metrics.DispatcherFatal.Inc()
			}
			return
		}

		frame := make([]byte, wire.OpcodeSize+rest)
		frame[0] = byte(op)
		if _, err := io.ReadFull(d.readFile, frame[wire.OpcodeSize:]); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.runErr = fmt.Errorf("dispatcher: read registration body: %w", err)
			d.logger.Error("rendezvous pipe body read failed", zap.Error(err))
			if d.metrics != nil {
				d.metrics.DispatcherFatal.Inc()
			}
			return
		}

		reg, err := wire.DecodeRegistration(frame)
		if err != nil {
			d.runErr = fmt.Errorf("%w: %v", ErrInvalidOpcode, err)
			d.logger.Error("malformed registration frame", zap.Error(err))
			if d.metrics != nil {
				d.metrics.DispatcherFatal.Inc()
			}
			return
		}

		d.logger.Debug("received registration", zap.Stringer("opcode", reg.Opcode), zap.String("pipe", reg.PipePath), zap.String("box", reg.BoxName))
		d.queue.Enqueue(toBrokerRegistration(reg))
	}
}

func toBrokerRegistration(reg wire.Registration) queue.Registration {
	switch reg.Opcode {
	case wire.OpPubReg:
		return PubReg{PipePath: reg.PipePath, BoxName: reg.BoxName}
	case wire.OpSubReg:
		return SubReg{PipePath: reg.PipePath, BoxName: reg.BoxName}
	case wire.OpBoxCreate:
		return CreateReq{PipePath: reg.PipePath, BoxName: reg.BoxName}
	case wire.OpBoxRemove:
		return RemoveReq{PipePath: reg.PipePath, BoxName: reg.BoxName}
	default: // wire.OpBoxList, exhaustively checked by the caller's switch
		return ListReq{PipePath: reg.PipePath}
	}
}

func (d *Dispatcher) closeDescriptors() {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.readFile != nil {
		d.readFile.Close()
	}
	if d.selfWrite != nil {
		d.selfWrite.Close()
	}
}

func (d *Dispatcher) shutdown() {
	d.closeDescriptors()
	_ = os.Remove(d.path)
	close(d.doneCh)
}
