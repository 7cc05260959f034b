package connection

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/i474232898/weather-panel/internal/config"
	"github.com/i474232898/weather-panel/internal/icons"
	"github.com/i474232898/weather-panel/internal/store"
	"github.com/i474232898/weather-panel/internal/weather"
)

const londonDocument = `{
  "coord": {"lon": -0.1257, "lat": 51.5085},
  "weather": [{"id": 800, "main": "Clear", "description": "clear sky", "icon": "01d"}],
  "main": {"temp": 300.15, "feels_like": 301.15, "temp_min": 299.15, "temp_max": 302.15, "pressure": 1000, "humidity": 45},
  "wind": {"speed": 10, "deg": 90},
  "clouds": {"all": 0},
  "dt": 0,
  "sys": {"country": "GB", "sunrise": 1000, "sunset": 5000},
  "timezone": 3600,
  "name": "London",
  "cod": 200
}`

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	err     error
	release chan struct{}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FetchCurrent(ctx context.Context, location, apiKey string) (*weather.RawWeatherDocument, error) {
	p.mu.Lock()
	p.calls++
	err, release := p.err, p.release
	p.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return weather.DecodeDocument([]byte(londonDocument))
}

func (p *fakeProvider) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type pngFetcher struct{}

func (pngFetcher) FetchIcon(ctx context.Context, code string) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 100, 100))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type failingFetcher struct{}

func (failingFetcher) FetchIcon(ctx context.Context, code string) ([]byte, error) {
	return nil, errors.New("icon host unreachable")
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakePublisher struct {
	mu        sync.Mutex
	locations []string
	statuses  []string
}

func (p *fakePublisher) PublishVariables(ctx context.Context, location, status string, vars weather.Variables) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locations = append(p.locations, location)
	p.statuses = append(p.statuses, status)
	return nil
}

type harness struct {
	ctrl     *Controller
	provider *fakeProvider
	state    *store.HostState
	clock    *fakeClock
}

func newHarness(opts ...Option) *harness {
	return newHarnessWithIcons(pngFetcher{}, opts...)
}

func newHarnessWithIcons(fetcher weather.IconFetcher, opts ...Option) *harness {
	log := zap.NewNop().Sugar()
	h := &harness{
		provider: &fakeProvider{},
		state:    store.NewHostState(),
		clock:    &fakeClock{now: time.Unix(2000, 0)},
	}
	cache := icons.NewCache(fetcher, h.state.IconUpdated, log)
	opts = append([]Option{WithManualTicks(), WithClock(h.clock.Now)}, opts...)
	h.ctrl = New(h.provider, cache, h.state, log, opts...)
	return h
}

func validConfig() config.Connection {
	return config.Connection{APIKey: "secret", Location: "London,uk"}
}

func (h *harness) variable(t *testing.T, id string) string {
	t.Helper()
	v, err := h.state.Variable(id)
	if err != nil {
		t.Fatalf("variable %s: %v", id, err)
	}
	return v
}

func TestInitializeFetchesAndPublishes(t *testing.T) {
	h := newHarness()

	if err := h.ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()

	if got := h.provider.count(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}
	if got := h.state.Status().Status; got != store.StatusOk {
		t.Fatalf("expected status ok, got %s", got)
	}
	if got := h.variable(t, "c_temp"); got != "81°" {
		t.Fatalf("expected c_temp 81°, got %q", got)
	}
	if got := h.variable(t, "l_name"); got != "London" {
		t.Fatalf("expected l_name London, got %q", got)
	}
	if len(h.state.Definitions()) != len(weather.Specs) {
		t.Fatalf("expected %d definitions, got %d", len(weather.Specs), len(h.state.Definitions()))
	}
	if code, n := h.state.IconUpdates(); code != "01d" || n != 1 {
		t.Fatalf("expected one icon update for 01d, got %q x%d", code, n)
	}
}

func TestMetricUnits(t *testing.T) {
	h := newHarness()
	cfg := validConfig()
	cfg.Units = weather.UnitsMetric

	if err := h.ctrl.Initialize(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()

	if got := h.variable(t, "c_temp"); got != "27°" {
		t.Fatalf("expected c_temp 27°, got %q", got)
	}
}

func TestBadConfigNeverPolls(t *testing.T) {
	h := newHarness()

	err := h.ctrl.Initialize(config.Connection{Location: "London"})
	if !errors.Is(err, weather.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if got := h.state.Status().Status; got != store.StatusBadConfig {
		t.Fatalf("expected bad_config, got %s", got)
	}

	h.clock.Advance(time.Hour)
	h.ctrl.Tick()
	if h.ctrl.Refresh() {
		t.Fatal("expected refresh to be ignored")
	}
	h.ctrl.Wait()

	if got := h.provider.count(); got != 0 {
		t.Fatalf("expected no fetches, got %d", got)
	}
	if _, ok := h.ctrl.Schedule(); ok {
		t.Fatal("expected no schedule for a bad config")
	}
}

func TestManualRefreshRespectsMinimumGap(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()

	if h.ctrl.Refresh() {
		t.Fatal("expected refresh right after init to be suppressed")
	}
	h.clock.Advance(59 * time.Second)
	if h.ctrl.Refresh() {
		t.Fatal("expected refresh inside the guard to be suppressed")
	}
	h.clock.Advance(time.Second)
	if !h.ctrl.Refresh() {
		t.Fatal("expected refresh after 60s to be issued")
	}
	if h.ctrl.Refresh() {
		t.Fatal("expected back-to-back refresh to be suppressed")
	}
	h.ctrl.Wait()

	if got := h.provider.count(); got != 2 {
		t.Fatalf("expected 2 fetches, got %d", got)
	}
}

func TestTickPollsOnInterval(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()

	h.clock.Advance(5 * time.Minute)
	h.ctrl.Tick()
	h.ctrl.Wait()
	if got := h.provider.count(); got != 1 {
		t.Fatalf("expected no poll before the interval, got %d fetches", got)
	}
	if got := h.variable(t, weather.VarTime); got != "01:38" {
		t.Fatalf("expected wall clock 01:38, got %q", got)
	}

	h.clock.Advance(15 * time.Minute)
	h.ctrl.Tick()
	h.ctrl.Wait()
	if got := h.provider.count(); got != 2 {
		t.Fatalf("expected a poll once the interval elapsed, got %d fetches", got)
	}
}

func TestProviderErrorLatchesUntilConfigChange(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()

	h.provider.fail(&weather.ProviderError{StatusCode: 401, Code: 401, Message: "Invalid API key."})
	h.clock.Advance(20 * time.Minute)
	h.ctrl.Tick()
	h.ctrl.Wait()

	report := h.state.Status()
	if report.Status != store.StatusError || report.Message != "Invalid API key." {
		t.Fatalf("expected error status with provider message, got %+v", report)
	}
	if got := h.variable(t, "l_name"); got != "London" {
		t.Fatalf("expected variables preserved, got l_name %q", got)
	}

	h.clock.Advance(time.Hour)
	h.ctrl.Tick()
	if h.ctrl.Refresh() {
		t.Fatal("expected refresh to be suppressed while latched")
	}
	h.ctrl.Wait()
	if got := h.provider.count(); got != 2 {
		t.Fatalf("expected no polls while latched, got %d fetches", got)
	}

	h.provider.fail(nil)
	if err := h.ctrl.ConfigChanged(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()
	if got := h.provider.count(); got != 3 {
		t.Fatalf("expected config change to poll, got %d fetches", got)
	}
	if got := h.state.Status().Status; got != store.StatusOk {
		t.Fatalf("expected ok after config change, got %s", got)
	}
}

func TestUnexpectedResponseResetsVariables(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()

	h.provider.fail(&weather.UnexpectedResponseError{StatusCode: 404, Message: "city not found"})
	h.clock.Advance(20 * time.Minute)
	h.ctrl.Tick()
	h.ctrl.Wait()

	if got := h.state.Status().Status; got != store.StatusUnknownError {
		t.Fatalf("expected unknown_error, got %s", got)
	}
	if got := h.variable(t, "l_name"); got != "city not found" {
		t.Fatalf("expected l_name to carry the message, got %q", got)
	}
	if got := h.variable(t, "c_temp"); got != "" {
		t.Fatalf("expected c_temp cleared, got %q", got)
	}

	h.clock.Advance(20 * time.Minute)
	h.ctrl.Tick()
	h.ctrl.Wait()
	if got := h.provider.count(); got != 3 {
		t.Fatalf("expected polling to continue, got %d fetches", got)
	}
}

func TestTransportErrorDoesNotLatch(t *testing.T) {
	h := newHarness()
	h.provider.fail(&weather.TransportError{Err: errors.New("connection refused")})

	if err := h.ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()

	if got := h.state.Status().Status; got != store.StatusConnectionFailure {
		t.Fatalf("expected connection_failure, got %s", got)
	}
	if sched, _ := h.ctrl.Schedule(); sched.HasError {
		t.Fatal("expected transport errors not to latch")
	}

	h.provider.fail(nil)
	h.clock.Advance(time.Minute)
	if !h.ctrl.Refresh() {
		t.Fatal("expected refresh to be issued")
	}
	h.ctrl.Wait()
	if got := h.state.Status().Status; got != store.StatusOk {
		t.Fatalf("expected ok after recovery, got %s", got)
	}
}

func TestResponseAfterTeardownIsDropped(t *testing.T) {
	h := newHarness()
	h.provider.release = make(chan struct{})

	if err := h.ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Teardown()
	close(h.provider.release)
	h.ctrl.Wait()

	if got := h.variable(t, "l_name"); got != "" {
		t.Fatalf("expected stale response to be ignored, got l_name %q", got)
	}
	if got := h.state.Status().Status; got != store.StatusConnecting {
		t.Fatalf("expected status to stay connecting, got %s", got)
	}
	if _, n := h.state.IconUpdates(); n != 0 {
		t.Fatalf("expected no icon updates, got %d", n)
	}
}

func TestSnapshotPublishedOnSuccess(t *testing.T) {
	pub := &fakePublisher{}
	h := newHarness(WithPublisher(pub))

	if err := h.ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.locations) != 1 || pub.locations[0] != "London,uk" || pub.statuses[0] != "ok" {
		t.Fatalf("unexpected publishes: %v %v", pub.locations, pub.statuses)
	}
}

func TestIconFeedbackUsesDayColours(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()

	fb := h.ctrl.IconFeedback()
	if fb.Code != "01d" || fb.PNG64 == "" {
		t.Fatalf("expected resolved 01d icon, got %+v", fb)
	}
	if !fb.Day || fb.Color != dayColor || fb.BgColor != dayBgColor {
		t.Fatalf("expected day colours, got %+v", fb)
	}
}

func TestIconFetchFailureIsReported(t *testing.T) {
	h := newHarnessWithIcons(failingFetcher{})

	if err := h.ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()

	report := h.state.Status()
	if report.Status != store.StatusConnectionFailure {
		t.Fatalf("expected connection_failure, got %s", report.Status)
	}
	if !strings.Contains(report.Message, "01d") {
		t.Fatalf("expected the icon code in the message, got %q", report.Message)
	}
	if sched, _ := h.ctrl.Schedule(); sched.HasError {
		t.Fatal("expected icon failures not to latch")
	}
	if got := h.variable(t, "c_temp"); got != "81°" {
		t.Fatalf("expected variables kept, got c_temp %q", got)
	}
	if fb := h.ctrl.IconFeedback(); fb.PNG64 != "" {
		t.Fatal("expected the icon to stay unresolved")
	}

	h.clock.Advance(20 * time.Minute)
	h.ctrl.Tick()
	h.ctrl.Wait()
	if got := h.provider.count(); got != 2 {
		t.Fatalf("expected polling to continue, got %d fetches", got)
	}
}

func TestTeardownClearsVariables(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.Wait()

	h.ctrl.Teardown()

	if got := h.ctrl.Variables()["c_temp"]; got != "" {
		t.Fatalf("expected controller variables cleared, got c_temp %q", got)
	}
	if got := h.variable(t, "c_temp"); got != "" {
		t.Fatalf("expected host variables cleared, got c_temp %q", got)
	}
}

type hangingProvider struct{}

func (hangingProvider) Name() string { return "hanging" }

func (hangingProvider) FetchCurrent(ctx context.Context, location, apiKey string) (*weather.RawWeatherDocument, error) {
	<-ctx.Done()
	return nil, &weather.TransportError{Err: ctx.Err()}
}

func TestFetchTimeoutBoundsPoll(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core).Sugar()
	state := store.NewHostState()
	cache := icons.NewCache(pngFetcher{}, state.IconUpdated, log)
	ctrl := New(hangingProvider{}, cache, state, log, WithManualTicks(), WithFetchTimeout(20*time.Millisecond))

	if err := ctrl.Initialize(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctrl.Wait()

	report := state.Status()
	if report.Status != store.StatusConnectionFailure {
		t.Fatalf("expected connection_failure, got %s", report.Status)
	}
	if !strings.Contains(report.Message, context.DeadlineExceeded.Error()) {
		t.Fatalf("expected a deadline error, got %q", report.Message)
	}

	failures := logs.FilterMessage("connection: fetch failed").All()
	if len(failures) != 1 {
		t.Fatalf("expected one fetch failure log, got %d", len(failures))
	}
	if got := failures[0].ContextMap()["provider"]; got != "hanging" {
		t.Fatalf("expected provider field hanging, got %v", got)
	}
}
