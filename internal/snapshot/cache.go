package snapshot

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/flagvane/flagvane/internal/models"
	"github.com/flagvane/flagvane/internal/telemetry"
)

// Loader is the storage collaborator the cache pulls from. It must
// return a self-consistent, fully joined flag graph as of one instant;
// partial loads are not supported. The returned slice is owned by the
// cache afterwards, so implementations must not retain or reuse it.
type Loader interface {
	LoadSnapshot(ctx context.Context) ([]models.Flag, error)
}

// State describes the cache lifecycle.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ErrNotStopped is returned by Start when the cache is already running.
var ErrNotStopped = errors.New("snapshot cache is not stopped")

// ErrRefreshInFlight is returned by Refresh when a previous refresh has
// not finished yet. Overlapping ticks are skipped, not queued.
var ErrRefreshInFlight = errors.New("snapshot refresh already in flight")

// Config controls the cache's refresh behavior.
type Config struct {
	// Interval between refresh ticks. Ignored when RefreshEnabled is
	// false.
	Interval time.Duration

	// RefreshEnabled turns the background loop on. Disabled caches
	// still perform the initial load on Start and support manual
	// Refresh calls, which is the single-shot SDK shape.
	RefreshEnabled bool

	// RetryMax bounds in-tick retries of a failed load. Zero keeps the
	// default policy of waiting for the next scheduled tick.
	RetryMax uint

	// LoadTimeout caps a single load attempt. Zero leaves timeout
	// enforcement to the storage collaborator.
	LoadTimeout time.Duration
}

// Cache owns the current snapshot and the background loop that rebuilds
// it. Readers call Current on every evaluation; the only shared mutable
// state is one atomic pointer, so the read path never locks and never
// observes a partially built snapshot.
type Cache struct {
	loader Loader
	cfg    Config
	log    zerolog.Logger

	current    atomic.Pointer[Snapshot]
	state      atomic.Int32
	refreshing atomic.Bool
	loaded     atomic.Bool

	stop chan struct{}
	done chan struct{}

	notifier notifier
}

// NewCache creates a stopped cache serving the empty snapshot.
func NewCache(loader Loader, cfg Config, log zerolog.Logger) *Cache {
	c := &Cache{
		loader: loader,
		cfg:    cfg,
		log:    log.With().Str("component", "snapshot_cache").Logger(),
	}
	c.current.Store(Empty())
	return c
}

// State returns the cache's lifecycle state.
func (c *Cache) State() State { return State(c.state.Load()) }

// Ready reports whether at least one load has succeeded.
func (c *Cache) Ready() bool { return c.loaded.Load() }

// Current returns the published snapshot. It never returns nil and
// never blocks: before the first successful load it returns the empty
// snapshot, under which every flag resolves as not found.
func (c *Cache) Current() *Snapshot { return c.current.Load() }

// Start performs a best-effort initial load, transitions to Running and
// schedules the periodic refresh. A failed initial load is logged, not
// fatal: the cache serves the empty snapshot until a refresh succeeds.
func (c *Cache) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrNotStopped
	}

	if err := c.Refresh(ctx); err != nil {
		c.log.Error().Err(err).Msg("initial snapshot load failed, serving empty snapshot")
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.state.Store(int32(StateRunning))

	if c.cfg.RefreshEnabled && c.cfg.Interval > 0 {
		go c.loop()
	} else {
		close(c.done)
	}

	c.log.Info().
		Dur("interval", c.cfg.Interval).
		Bool("refresh_enabled", c.cfg.RefreshEnabled).
		Int("flags", c.Current().Len()).
		Msg("snapshot cache started")
	return nil
}

// Stop cancels the scheduled refresh and waits for the loop to exit. An
// in-flight refresh is allowed to finish; its result is published to a
// cache that simply receives no further ticks. Stop is safe to call on
// a cache that never started.
func (c *Cache) Stop() {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}
	close(c.stop)
	<-c.done
	c.state.Store(int32(StateStopped))
	c.log.Info().Msg("snapshot cache stopped")
}

// Subscribe registers an in-process listener for snapshot changes. The
// channel carries the ETag of each newly published snapshot; slow
// listeners miss updates instead of blocking the publisher.
func (c *Cache) Subscribe() (<-chan string, func()) {
	return c.notifier.subscribe()
}

func (c *Cache) loop() {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.Refresh(context.Background()); err != nil && !errors.Is(err, ErrRefreshInFlight) {
				c.log.Error().Err(err).Msg("snapshot refresh failed, serving previous snapshot")
			}
		}
	}
}

// Refresh performs one load-build-publish cycle. At most one refresh
// runs at a time; a call that overlaps a still-running refresh returns
// ErrRefreshInFlight without queueing. On load failure the previously
// published snapshot stays in place untouched.
func (c *Cache) Refresh(ctx context.Context) error {
	if !c.refreshing.CompareAndSwap(false, true) {
		telemetry.RefreshTotal.WithLabelValues("skipped").Inc()
		c.log.Debug().Msg("refresh tick skipped, previous refresh still running")
		return ErrRefreshInFlight
	}
	defer c.refreshing.Store(false)

	start := time.Now()
	flags, err := c.load(ctx)
	telemetry.RefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.RefreshTotal.WithLabelValues("failure").Inc()
		return err
	}

	prev := c.current.Load()
	next := Build(flags)
	c.current.Store(next)
	c.loaded.Store(true)

	telemetry.RefreshTotal.WithLabelValues("success").Inc()
	telemetry.SnapshotFlags.Set(float64(next.Len()))
	telemetry.SnapshotTimestamp.Set(float64(next.UpdatedAt().Unix()))

	if prev.ETag() != next.ETag() {
		c.log.Info().
			Int("flags", next.Len()).
			Str("etag", next.ETag()).
			Msg("snapshot updated")
		c.notifier.publish(next.ETag())
	}
	return nil
}

// load runs one load attempt, with optional per-attempt timeout and
// optional bounded exponential-backoff retry inside the tick.
func (c *Cache) load(ctx context.Context) ([]models.Flag, error) {
	attempt := func() ([]models.Flag, error) {
		loadCtx := ctx
		if c.cfg.LoadTimeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(ctx, c.cfg.LoadTimeout)
			defer cancel()
		}
		return c.loader.LoadSnapshot(loadCtx)
	}

	if c.cfg.RetryMax == 0 {
		return attempt()
	}
	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.cfg.RetryMax+1),
	)
}
