package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/weather-panel/internal/config"
	"github.com/i474232898/weather-panel/internal/icons"
	"github.com/i474232898/weather-panel/internal/scheduler"
	"github.com/i474232898/weather-panel/internal/store"
	"github.com/i474232898/weather-panel/internal/weather"
)

const defaultFetchTimeout = 30 * time.Second

// Host receives everything the controller publishes.
type Host interface {
	SetStatus(status store.Status, message string)
	SetDefinitions(defs []weather.VariableSpec)
	SetVariables(vars weather.Variables)
}

// SnapshotPublisher receives the variable set after each successful refresh.
type SnapshotPublisher interface {
	PublishVariables(ctx context.Context, location, status string, vars weather.Variables) error
}

// Controller owns one weather connection: its schedule, error latch, current
// document and published variables. All state changes happen under mu; the
// upstream fetch runs in its own goroutine and applies its result under mu.
type Controller struct {
	mu sync.Mutex

	provider  weather.Provider
	icons     *icons.Cache
	host      Host
	publisher SnapshotPublisher
	log       *zap.SugaredLogger

	now          func() time.Time
	fetchTimeout time.Duration
	autoTick     bool
	tickEvery    time.Duration

	cfg         config.Connection
	initialized bool
	generation  string
	schedule    *scheduler.Schedule
	ticker      *scheduler.Ticker
	doc         *weather.RawWeatherDocument
	vars        weather.Variables
	status      store.Status
	message     string

	wg sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithPublisher enables snapshot publishing.
func WithPublisher(p SnapshotPublisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithManualTicks disables the internal ticker; the caller drives Tick.
func WithManualTicks() Option {
	return func(c *Controller) { c.autoTick = false }
}

// WithFetchTimeout bounds each weather fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// New creates an uninitialized controller.
func New(provider weather.Provider, cache *icons.Cache, host Host, log *zap.SugaredLogger, opts ...Option) *Controller {
	c := &Controller{
		provider:     provider,
		icons:        cache,
		host:         host,
		log:          log,
		now:          time.Now,
		fetchTimeout: defaultFetchTimeout,
		autoTick:     true,
		tickEvery:    scheduler.TickInterval,
		vars:         weather.EmptyVariables(),
		status:       store.StatusConnecting,
	}
	for _, opt := range opts {
		opt(c)
	}
	cache.OnError(c.iconFailed)
	return c
}

// Initialize (re)starts the connection with cfg: it advertises the variable
// table, resets published state and, when cfg is valid, polls immediately and
// starts the tick cadence. An invalid cfg is reported as BadConfig and
// nothing else happens.
func (c *Controller) Initialize(cfg config.Connection) error {
	c.mu.Lock()
	old := c.resetLocked()

	cfg = cfg.WithDefaults()
	c.cfg = cfg
	c.host.SetDefinitions(weather.Specs)
	c.vars = weather.EmptyVariables()
	c.host.SetVariables(c.vars)

	if err := cfg.Validate(); err != nil {
		c.log.Warnw("connection: invalid config", "error", err)
		c.setStatusLocked(store.StatusBadConfig, err.Error())
		c.mu.Unlock()
		stopTicker(old)
		return err
	}

	c.generation = uuid.NewString()
	c.schedule = scheduler.NewSchedule(cfg.RefreshInterval())
	c.initialized = true
	c.setStatusLocked(store.StatusConnecting, "")
	c.log.Infow("connection: initialized",
		"provider", c.provider.Name(),
		"location", cfg.Location,
		"units", cfg.Units,
		"timezone", cfg.Timezone,
		"refreshMinutes", cfg.RefreshMinutes,
		"generation", c.generation,
	)

	if c.autoTick {
		c.ticker = scheduler.NewTicker(c.tickEvery, c.Tick, c.log)
		if err := c.ticker.Start(); err != nil {
			c.log.Errorw("connection: failed to start ticker", "error", err)
		}
	}

	c.pollLocked(c.now(), "init")
	c.mu.Unlock()

	stopTicker(old)
	return nil
}

// ConfigChanged re-initializes the connection, which also lifts the latch.
func (c *Controller) ConfigChanged(cfg config.Connection) error {
	c.log.Infow("connection: config changed")
	return c.Initialize(cfg)
}

// Teardown stops the tick cadence and clears in-memory state, including the
// published variables. Responses that arrive afterwards are dropped.
func (c *Controller) Teardown() {
	c.mu.Lock()
	old := c.resetLocked()
	c.vars = weather.EmptyVariables()
	c.host.SetVariables(c.vars)
	c.mu.Unlock()

	stopTicker(old)
	c.log.Infow("connection: torn down")
}

// Refresh is the manual refresh action.
func (c *Controller) Refresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		c.log.Debugw("connection: refresh ignored, not initialized")
		return false
	}
	return c.pollLocked(c.now(), "manual")
}

// Tick recomputes the wall-clock variables and polls when the refresh
// interval has elapsed.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return
	}

	now := c.now()
	var offset int64
	if c.doc != nil {
		offset = c.doc.Timezone
	}
	next := c.vars.Clone()
	weather.ApplyWallClock(next, c.cfg.Timezone, offset, now)
	c.vars = next
	c.host.SetVariables(c.vars)

	if c.schedule.Due(now) {
		c.pollLocked(now, "interval")
	}
}

// Wait blocks until in-flight weather and icon fetches have completed.
func (c *Controller) Wait() {
	c.wg.Wait()
	c.icons.Wait()
}

// Status returns the last reported status and message.
func (c *Controller) Status() (store.Status, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.message
}

// Variables returns a copy of the current variable set.
func (c *Controller) Variables() weather.Variables {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vars.Clone()
}

// Schedule returns the schedule state once initialized.
func (c *Controller) Schedule() (scheduler.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schedule == nil {
		return scheduler.Snapshot{}, false
	}
	return c.schedule.Snapshot(), true
}

func (c *Controller) pollLocked(now time.Time, reason string) bool {
	if !c.schedule.TryIssue(now) {
		c.log.Debugw("connection: poll suppressed", "reason", reason, "latched", c.schedule.Snapshot().HasError)
		return false
	}

	gen, cfg := c.generation, c.cfg
	c.log.Debugw("connection: polling", "provider", c.provider.Name(), "reason", reason, "location", cfg.Location)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.fetch(gen, cfg)
	}()
	return true
}

func (c *Controller) fetch(gen string, cfg config.Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	doc, err := c.provider.FetchCurrent(ctx, cfg.Location, cfg.APIKey)
	cancel()

	published := c.complete(gen, doc, err)
	if published == nil || c.publisher == nil {
		return
	}

	ctx, cancel = context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()
	if err := c.publisher.PublishVariables(ctx, cfg.Location, string(store.StatusOk), published); err != nil {
		c.log.Warnw("connection: failed to publish snapshot", "location", cfg.Location, "error", err)
	}
}

// complete applies a fetch result and returns the new variable set on success.
func (c *Controller) complete(gen string, doc *weather.RawWeatherDocument, err error) weather.Variables {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized || gen != c.generation {
		c.log.Debugw("connection: dropping stale response", "generation", gen)
		return nil
	}

	if err != nil {
		c.handleErrorLocked(err)
		return nil
	}

	c.schedule.Clear()
	c.doc = doc
	c.vars = weather.MapVariables(doc, weather.MapOptions{
		Units:    c.cfg.Units,
		Timezone: c.cfg.Timezone,
		Now:      c.now(),
	})
	c.host.SetVariables(c.vars)
	c.setStatusLocked(store.StatusOk, "")
	c.icons.Ensure(doc.IconCode())

	return c.vars.Clone()
}

func (c *Controller) handleErrorLocked(err error) {
	var (
		providerErr   *weather.ProviderError
		unexpectedErr *weather.UnexpectedResponseError
	)

	switch {
	case errors.As(err, &providerErr):
		c.log.Errorw("connection: provider error", "location", c.cfg.Location, "status", providerErr.StatusCode, "message", providerErr.Message)
		c.schedule.Latch()
		c.setStatusLocked(store.StatusError, providerErr.Message)

	case errors.As(err, &unexpectedErr):
		c.log.Warnw("connection: unexpected response", "location", c.cfg.Location, "status", unexpectedErr.StatusCode, "message", unexpectedErr.Message)
		c.doc = nil
		c.vars = weather.ErrorVariables(unexpectedErr.Message)
		c.host.SetVariables(c.vars)
		c.setStatusLocked(store.StatusUnknownError, unexpectedErr.Message)

	case errors.Is(err, weather.ErrInvalidConfig):
		c.log.Warnw("connection: invalid config", "error", err)
		c.setStatusLocked(store.StatusBadConfig, err.Error())

	default:
		c.log.Errorw("connection: fetch failed", "provider", c.provider.Name(), "location", c.cfg.Location, "error", err)
		c.setStatusLocked(store.StatusConnectionFailure, err.Error())
	}
}

// iconFailed reports a failed fetch of the current condition icon as a
// connection failure. Nothing latches; the code stays unresolved so the next
// successful poll retries it and restores the ok status.
func (c *Controller) iconFailed(code string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized || c.doc == nil || c.doc.IconCode() != code {
		return
	}
	c.log.Warnw("connection: icon unavailable", "code", code, "error", err)
	c.setStatusLocked(store.StatusConnectionFailure, fmt.Sprintf("icon %s: %v", code, err))
}

func (c *Controller) setStatusLocked(status store.Status, message string) {
	c.status, c.message = status, message
	c.host.SetStatus(status, message)
}

// resetLocked clears connection state and hands back the ticker to stop once
// mu is released, since a tick may be waiting on mu.
func (c *Controller) resetLocked() *scheduler.Ticker {
	old := c.ticker
	c.ticker = nil
	c.initialized = false
	c.generation = ""
	c.schedule = nil
	c.doc = nil
	c.icons.Reset()
	return old
}

func stopTicker(t *scheduler.Ticker) {
	if t != nil {
		t.Stop()
	}
}
