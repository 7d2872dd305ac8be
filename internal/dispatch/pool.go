package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// drainGrace bounds how long shutdown waits for queued triggers to send.
const drainGrace = 30 * time.Second

// Pool runs a fixed set of workers draining the trigger queue into the
// dispatcher.
type Pool struct {
	queue      *Queue
	dispatcher *Dispatcher
	workers    int
	logger     *zap.Logger

	wg sync.WaitGroup
}

// NewPool wires a queue to a dispatcher with n workers.
func NewPool(queue *Queue, dispatcher *Dispatcher, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{queue: queue, dispatcher: dispatcher, workers: workers, logger: logger}
}

// Run starts the workers and blocks until the context is cancelled and
// the queue is drained. Workers send under their own context so a trigger
// accepted before shutdown still dispatches after the run context dies;
// the drain is bounded by drainGrace rather than open-ended.
func (p *Pool) Run(ctx context.Context) {
	sendCtx, sendCancel := context.WithCancel(context.Background())
	defer sendCancel()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for trigger := range p.queue.Source() {
				p.dispatcher.HandleTrigger(sendCtx, trigger)
			}
		}()
	}

	<-ctx.Done()
	p.queue.Close()
	graceTimer := time.AfterFunc(drainGrace, sendCancel)
	defer graceTimer.Stop()
	p.wg.Wait()
	p.logger.Info("dispatch pool drained")
}
