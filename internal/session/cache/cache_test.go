package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"carescope/backend/internal/session/domain"
)

type countingLoader struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	calls    int
}

func (l *countingLoader) GetByID(_ context.Context, id string) (*domain.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.sessions[id], nil
}

func TestCache_ReadThroughAndEvict(t *testing.T) {
	loader := &countingLoader{sessions: map[string]*domain.Session{"s1": {ID: "s1", AccountID: "a1"}}}
	c := New(loader, 8, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := c.Get(ctx, "s1")
		if err != nil || s == nil || s.ID != "s1" {
			t.Fatalf("Get = %+v, %v", s, err)
		}
	}
	if loader.calls != 1 {
		t.Errorf("loader calls = %d, want 1", loader.calls)
	}

	c.Evict("s1")
	if _, err := c.Get(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if loader.calls != 2 {
		t.Errorf("loader calls after evict = %d, want 2", loader.calls)
	}
}

func TestCache_MissesAreNotCached(t *testing.T) {
	loader := &countingLoader{sessions: map[string]*domain.Session{}}
	c := New(loader, 8, time.Minute)
	for i := 0; i < 2; i++ {
		s, err := c.Get(context.Background(), "missing")
		if err != nil || s != nil {
			t.Fatalf("Get = %+v, %v", s, err)
		}
	}
	if loader.calls != 2 || c.Len() != 0 {
		t.Errorf("calls = %d, len = %d; want 2, 0", loader.calls, c.Len())
	}
}

func TestCache_Disabled(t *testing.T) {
	loader := &countingLoader{sessions: map[string]*domain.Session{"s1": {ID: "s1"}}}
	c := New(loader, 0, time.Minute)
	_, _ = c.Get(context.Background(), "s1")
	_, _ = c.Get(context.Background(), "s1")
	c.Evict("s1")
	if loader.calls != 2 {
		t.Errorf("loader calls = %d, want 2", loader.calls)
	}
}
