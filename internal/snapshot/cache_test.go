package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/flagvane/flagvane/internal/models"
)

// fakeLoader scripts successive LoadSnapshot outcomes.
type fakeLoader struct {
	mu      sync.Mutex
	results []loadResult
	calls   int
	delay   time.Duration
}

type loadResult struct {
	flags []models.Flag
	err   error
}

func (l *fakeLoader) LoadSnapshot(ctx context.Context) ([]models.Flag, error) {
	l.mu.Lock()
	idx := l.calls
	l.calls++
	delay := l.delay
	l.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.results) == 0 {
		return nil, errors.New("no scripted result")
	}
	if idx >= len(l.results) {
		idx = len(l.results) - 1
	}
	r := l.results[idx]
	if r.err != nil {
		return nil, r.err
	}
	// Each load hands the cache a fresh slice, as a real store does.
	out := make([]models.Flag, len(r.flags))
	copy(out, r.flags)
	return out, nil
}

func (l *fakeLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func flagsV(n int) []models.Flag {
	flags := make([]models.Flag, n)
	for i := range flags {
		flags[i] = models.Flag{ID: int64(i + 1), Key: "f" + string(rune('a'+i)), Enabled: true}
	}
	return flags
}

func newTestCache(loader Loader, cfg Config) *Cache {
	return NewCache(loader, cfg, zerolog.Nop())
}

func TestCache_CurrentBeforeStart(t *testing.T) {
	c := newTestCache(&fakeLoader{}, Config{})
	snap := c.Current()
	if snap == nil {
		t.Fatal("Current() returned nil before start")
	}
	if snap.Len() != 0 {
		t.Fatalf("pre-start snapshot has %d flags, want 0", snap.Len())
	}
	if c.State() != StateStopped {
		t.Fatalf("state = %s, want stopped", c.State())
	}
	if c.Ready() {
		t.Fatal("cache reports ready before any load")
	}
}

func TestCache_StartLoadsInitialSnapshot(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{{flags: flagsV(2)}}}
	c := newTestCache(loader, Config{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	if c.State() != StateRunning {
		t.Fatalf("state = %s, want running", c.State())
	}
	if !c.Ready() {
		t.Fatal("cache not ready after successful initial load")
	}
	if got := c.Current().Len(); got != 2 {
		t.Fatalf("snapshot has %d flags, want 2", got)
	}
}

func TestCache_StartTwiceFails(t *testing.T) {
	c := newTestCache(&fakeLoader{results: []loadResult{{}}}, Config{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer c.Stop()

	if err := c.Start(context.Background()); !errors.Is(err, ErrNotStopped) {
		t.Fatalf("second Start = %v, want ErrNotStopped", err)
	}
}

func TestCache_FailedInitialLoadServesEmpty(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{{err: errors.New("storage down")}}}
	c := newTestCache(loader, Config{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start must tolerate a failed initial load, got %v", err)
	}
	defer c.Stop()

	if c.Ready() {
		t.Fatal("cache must not report ready after a failed load")
	}
	if got := c.Current().Len(); got != 0 {
		t.Fatalf("snapshot has %d flags, want empty", got)
	}
}

func TestCache_FailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{
		{flags: flagsV(3)},
		{err: errors.New("storage down")},
	}}
	c := newTestCache(loader, Config{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	before := c.Current()

	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	after := c.Current()
	if after != before {
		t.Fatal("failed refresh replaced the published snapshot")
	}
	if after.Len() != 3 {
		t.Fatalf("snapshot has %d flags, want previous 3", after.Len())
	}
}

func TestCache_RefreshPublishesNewSnapshot(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{
		{flags: flagsV(1)},
		{flags: flagsV(4)},
	}}
	c := newTestCache(loader, Config{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := c.Current().Len(); got != 4 {
		t.Fatalf("snapshot has %d flags, want 4", got)
	}
}

func TestCache_OverlappingRefreshSkipped(t *testing.T) {
	loader := &fakeLoader{
		results: []loadResult{{flags: flagsV(1)}},
		delay:   100 * time.Millisecond,
	}
	c := newTestCache(loader, Config{})

	errs := make(chan error, 1)
	go func() { errs <- c.Refresh(context.Background()) }()

	// Give the first refresh time to take the slot, then collide.
	time.Sleep(20 * time.Millisecond)
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrRefreshInFlight) {
		t.Fatalf("overlapping Refresh = %v, want ErrRefreshInFlight", err)
	}

	if err := <-errs; err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if got := loader.callCount(); got != 1 {
		t.Fatalf("loader called %d times, want 1 (skip, not queue)", got)
	}
}

func TestCache_BackgroundRefreshTicks(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{{flags: flagsV(1)}}}
	c := newTestCache(loader, Config{
		Interval:       10 * time.Millisecond,
		RefreshEnabled: true,
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for loader.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if got := loader.callCount(); got < 3 {
		t.Fatalf("loader called %d times, want periodic refreshes", got)
	}
	if c.State() != StateStopped {
		t.Fatalf("state after Stop = %s, want stopped", c.State())
	}
}

func TestCache_StopIsIdempotent(t *testing.T) {
	c := newTestCache(&fakeLoader{results: []loadResult{{}}}, Config{
		Interval:       time.Hour,
		RefreshEnabled: true,
	})
	c.Stop() // never started
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Stop()
	c.Stop()
	if c.State() != StateStopped {
		t.Fatalf("state = %s, want stopped", c.State())
	}
}

func TestCache_RetryWithinTick(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{
		{err: errors.New("blip")},
		{err: errors.New("blip")},
		{flags: flagsV(2)},
	}}
	c := newTestCache(loader, Config{RetryMax: 3})

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh with retries: %v", err)
	}
	if got := c.Current().Len(); got != 2 {
		t.Fatalf("snapshot has %d flags, want 2", got)
	}
	if got := loader.callCount(); got != 3 {
		t.Fatalf("loader called %d times, want 3 (two failures then success)", got)
	}
}

func TestCache_SubscribeReceivesETagOnChange(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{
		{flags: flagsV(1)},
		{flags: flagsV(2)},
	}}
	c := newTestCache(loader, Config{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	ch, unsub := c.Subscribe()
	defer unsub()

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	select {
	case etag := <-ch:
		if etag != c.Current().ETag() {
			t.Fatalf("notified etag %s, current %s", etag, c.Current().ETag())
		}
	case <-time.After(time.Second):
		t.Fatal("no change notification received")
	}
}

func TestCache_ConcurrentReadersDuringRefresh(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{{flags: flagsV(2)}}}
	c := newTestCache(loader, Config{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := c.Current()
				if snap == nil {
					t.Error("reader observed nil snapshot")
					return
				}
				if n := snap.Len(); n != 2 {
					t.Errorf("reader observed torn snapshot with %d flags", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		_ = c.Refresh(context.Background())
	}
	close(done)
	wg.Wait()
}
