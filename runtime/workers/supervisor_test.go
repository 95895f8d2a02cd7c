package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// countingWorker panics for the first panicUntil runs, then terminates cleanly.
type countingWorker struct {
	runs       atomic.Int32
	panicUntil int32
}

func (w *countingWorker) Run(ctx context.Context) error {
	run := w.runs.Add(1)
	if run <= w.panicUntil {
		panic("boom")
	}
	return nil
}

// blockingWorker runs until its context is canceled.
type blockingWorker struct {
	started chan struct{}
}

func (w *blockingWorker) Run(ctx context.Context) error {
	close(w.started)
	<-ctx.Done()
	return nil
}

func TestSupervisor_Restarts_A_Panicking_Worker(t *testing.T) {
	req := require.New(t)
	worker := &countingWorker{panicUntil: 2}
	sup := NewSupervisor(slog.Default(), time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.Add(worker).Run(context.Background())
		close(done)
	}()

	// Two panics, then a clean exit on the third run
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not finish")
	}
	req.Equal(int32(3), worker.runs.Load())
}

func TestSupervisor_Clean_Exit_Is_Not_Restarted(t *testing.T) {
	req := require.New(t)
	worker := &countingWorker{}
	sup := NewSupervisor(slog.Default(), time.Millisecond)

	sup.Add(worker).Run(context.Background())

	req.Equal(int32(1), worker.runs.Load())
}

func TestSupervisor_Stop_Cancels_Workers(t *testing.T) {
	worker := &blockingWorker{started: make(chan struct{})}
	sup := NewSupervisor(slog.Default(), time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.Add(worker).Run(context.Background())
		close(done)
	}()

	<-worker.started
	sup.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisor_Parent_Cancellation_Stops_Workers(t *testing.T) {
	worker := &blockingWorker{started: make(chan struct{})}
	sup := NewSupervisor(slog.Default(), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sup.Add(worker).Run(ctx)
		close(done)
	}()

	<-worker.started
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
