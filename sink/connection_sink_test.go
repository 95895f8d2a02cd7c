package sink

import (
	"context"
	"log/slog"
	"testing"

	"chat-rooms/domain"
	"chat-rooms/domain/event"

	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Consume_Then_Drain(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink(slog.Default(), 4)

	// When two events are consumed
	req.NoError(s.Consume(context.Background(), event.NewUserTyping(domain.Identity{UserID: "u1"}, true)))
	req.NoError(s.Consume(context.Background(), event.NewUserTyping(domain.Identity{UserID: "u1"}, false)))

	// Then the write loop drains them in order
	first := <-s.Events()
	second := <-s.Events()
	req.Equal(event.UserTypingType, first.EventType())
	req.True(first.(event.UserTyping).Typing)
	req.False(second.(event.UserTyping).Typing)
}

func TestConnectionSink_Overflow_Evicts_The_Connection(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink(slog.Default(), 1)

	// Given a full buffer
	req.NoError(s.Consume(context.Background(), event.NewUserJoined(domain.Identity{UserID: "u1"})))

	// When one more event arrives
	err := s.Consume(context.Background(), event.NewUserLeft(domain.Identity{UserID: "u1"}))

	// Then the sink closes itself instead of blocking the broadcaster
	req.ErrorIs(err, ErrSinkClosed)
	select {
	case <-s.Done():
	default:
		t.Fatal("expected sink to be closed after overflow")
	}
}

func TestConnectionSink_Consume_After_Close_Fails(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink(slog.Default(), 4)

	s.Close()

	err := s.Consume(context.Background(), event.NewUserJoined(domain.Identity{UserID: "u1"}))
	req.ErrorIs(err, ErrSinkClosed)
}

func TestConnectionSink_Close_Is_Idempotent(t *testing.T) {
	s := NewConnectionSink(slog.Default(), 4)

	// Closing twice must not panic: cleanup can be triggered concurrently
	// from multiple signals.
	s.Close()
	s.Close()
}
