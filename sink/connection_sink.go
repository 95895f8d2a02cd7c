package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chat-rooms/domain/event"
)

var ErrSinkClosed = fmt.Errorf("sink closed")

// ConnectionSink is the bounded outbound queue of one live connection.
// Consume is called by the registry during fan-out and redirects the event
// through the channel owned by the connection's write loop.
//
// A sink never blocks the broadcaster: when the buffer is full the connection
// is considered a slow consumer and the sink closes itself, which the write
// loop observes via Done and tears the connection down.
type ConnectionSink struct {
	log       *slog.Logger
	events    chan event.DomainEvent
	done      chan struct{}
	closeOnce sync.Once
}

func NewConnectionSink(log *slog.Logger, bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		log:    log,
		events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Slow-consumer eviction: dropping silently would reorder the stream,
		// so the whole connection goes instead.
		s.log.Warn("Outbound buffer full, evicting slow consumer", "event", e.EventType())
		s.Close()
		return ErrSinkClosed
	}
}

// Events is consumed by the connection's write loop, the only reader.
func (s *ConnectionSink) Events() <-chan event.DomainEvent {
	return s.events
}

// Done is closed exactly once, regardless of how many signals race to close the sink.
func (s *ConnectionSink) Done() <-chan struct{} {
	return s.done
}

func (s *ConnectionSink) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
