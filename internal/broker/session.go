package broker

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"
)

// openClientPipe opens the named pipe a publisher, subscriber, or manager
// client created and is blocked inside open() waiting on, rendezvousing
// by filename. A missing pipe means the client gave up or never created
// it; that is not a broker error, just an abandoned session.
func openClientPipe(path string, flag int) (*os.File, error) {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errSessionAbandoned
		}
		return nil, err
	}
	return f, nil
}

var errSessionAbandoned = errors.New("broker: client pipe missing, session abandoned")

// endSession records a session-ended metric and, for anything other than
// a clean close or an abandoned client, logs the cause. role is one of
// "publisher", "subscriber", "box_create", "box_remove", "box_list".
func (w *Worker) endSession(role, reason string, err error) {
	if w.broker.metrics != nil {
		w.broker.metrics.SessionsEnded.WithLabelValues(role, reason).Inc()
	}
	if err != nil && !errors.Is(err, errSessionAbandoned) {
		w.broker.logger.Debug("session ended", zap.String("role", role), zap.String("reason", reason), zap.Error(err))
	}
}

func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
