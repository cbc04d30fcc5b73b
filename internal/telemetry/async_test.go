package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*Event
	emitErr error
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func waitFor(t *testing.T, done <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d emits", i, n)
		}
	}
}

func TestEmitAsync_NilArguments(t *testing.T) {
	EmitAsync(nil, context.Background(), &Event{Type: EventAlertCreated})

	emitter := &mockEventEmitter{}
	EmitAsync(emitter, context.Background(), nil)
	time.Sleep(10 * time.Millisecond)
	if n := len(emitter.getEvents()); n != 0 {
		t.Errorf("expected 0 events, got %d", n)
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1)}
	EmitAsync(emitter, context.Background(), &Event{Type: EventRiskRecomputed, OrgID: "org-1", CustomerID: "cust-1"})
	waitFor(t, emitter.done, 1)

	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].OrgID != "org-1" || events[0].CustomerID != "cust-1" {
		t.Errorf("event = %+v", events[0])
	}
	if events[0].OccurredAt.IsZero() {
		t.Error("OccurredAt should be stamped")
	}
}

func TestEmitAsync_IgnoresRequestCancellation(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	EmitAsync(emitter, ctx, &Event{Type: EventAlertResolved})
	waitFor(t, emitter.done, 1)
}

func TestEmitAsync_ErrorDoesNotPanic(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: context.DeadlineExceeded, done: make(chan struct{}, 1)}
	EmitAsync(emitter, context.Background(), &Event{Type: EventAlertCreated})
	waitFor(t, emitter.done, 1)
}

func TestEmitAsync_Concurrent(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 10)}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(emitter, context.Background(), &Event{Type: EventAlertCreated})
		}()
	}
	wg.Wait()
	waitFor(t, emitter.done, 10)
	if n := len(emitter.getEvents()); n != 10 {
		t.Errorf("expected 10 events, got %d", n)
	}
}

func TestFanout(t *testing.T) {
	boom := errors.New("kafka down")
	a := &mockEventEmitter{}
	b := &mockEventEmitter{emitErr: boom}
	f := Fanout{a, nil, b}
	err := f.Emit(context.Background(), &Event{Type: EventAlertCreated})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if len(a.getEvents()) != 1 || len(b.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
}
