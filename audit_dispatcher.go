package brokerauth

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples the pipeline's hot path from the sink: LogAccess
// enqueues, a single goroutine delivers. Backpressure policy comes from
// AuditConfig — either count-and-drop or block the producer until the queue
// accepts the record.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan AuditRecord
	quit       chan struct{}
	drained    chan struct{}
	dropIfFull bool

	dropped atomic.Uint64
	stopped atomic.Bool
	once    sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan AuditRecord, buffer),
		quit:       make(chan struct{}),
		drained:    make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}
	go d.deliver()
	return d
}

// deliver is the single consumer. After quit it flushes whatever is already
// queued, then signals drained.
func (d *auditDispatcher) deliver() {
	defer close(d.drained)

	for {
		select {
		case record := <-d.queue:
			d.sink.Emit(context.Background(), record)
		case <-d.quit:
			for {
				select {
				case record := <-d.queue:
					d.sink.Emit(context.Background(), record)
				default:
					return
				}
			}
		}
	}
}

// Emit enqueues one record under the configured backpressure policy. Records
// offered after Close are discarded without counting as drops.
func (d *auditDispatcher) Emit(ctx context.Context, record AuditRecord) {
	if d == nil || d.stopped.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- record:
		case <-d.quit:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- record:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops accepting records, flushes the queue, and waits for delivery
// to finish. Safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.stopped.Store(true)
		close(d.quit)
		<-d.drained
	})
}

// Dropped reports records discarded under the drop-if-full policy.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
