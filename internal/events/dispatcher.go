package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// Dispatcher publishes committed events in the background. Failures are
// logged and never reach the caller.
type Dispatcher struct {
	pub     Publisher
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(pub Publisher, logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{pub: pub, logger: logger, timeout: timeout}
}

// Dispatch returns immediately. The publish context keeps ctx's values (trace
// span, request id) but not its cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, evts ...Event) {
	if d == nil || d.pub == nil || len(evts) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("event publisher panicked", zap.Any("panic", r))
			}
		}()

		pctx, cancel := context.WithTimeout(detached, d.timeout)
		defer cancel()

		for _, e := range evts {
			if err := d.pub.Publish(pctx, e); err != nil {
				d.logger.Warn("publish event failed",
					zap.String("event_type", e.Type),
					zap.String("event_id", e.ID.String()),
					zap.String("key", e.Key),
					zap.Error(err),
				)
			}
		}
	}()
}

// Wait blocks until every in-flight dispatch finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
