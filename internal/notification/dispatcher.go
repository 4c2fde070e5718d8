package notification

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// message is one outbound notification waiting for delivery.
type message struct {
	subject    string
	textBody   string
	htmlBody   string
	recipients []string
}

// Dispatcher decouples notification delivery from the transactions that
// trigger it. Messages go onto a buffered queue and a background worker
// drains it; a full queue drops the message rather than blocking the
// caller.
type Dispatcher struct {
	sender Sender
	queue  chan message
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given queue capacity.
func NewDispatcher(sender Sender, queueSize int, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		sender: sender,
		queue:  make(chan message, queueSize),
		logger: logger,
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-d.queue:
				if err := d.sender.Send(ctx, msg.subject, msg.textBody, msg.htmlBody, msg.recipients); err != nil {
					d.logger.Error("Failed to send notification",
						zap.String("subject", msg.subject),
						zap.Error(err))
				}
			}
		}
	}()
}

// Stop shuts the worker down. Queued messages that have not been picked
// up yet are dropped; delivery is best effort.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// enqueue hands a message to the worker without blocking.
func (d *Dispatcher) enqueue(msg message) {
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("Notification queue full, dropping message",
			zap.String("subject", msg.subject))
	}
}
