package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// TickInterval is the fixed cadence of controller ticks, independent of the
// configured refresh interval.
const TickInterval = 60 * time.Second

// Ticker invokes a function on a fixed cadence. Runs never overlap.
type Ticker struct {
	scheduler *gocron.Scheduler
	every     time.Duration
	tick      func()
	log       *zap.SugaredLogger
}

// NewTicker creates a stopped Ticker.
func NewTicker(every time.Duration, tick func(), log *zap.SugaredLogger) *Ticker {
	if every <= 0 {
		every = TickInterval
	}
	return &Ticker{
		scheduler: gocron.NewScheduler(time.UTC),
		every:     every,
		tick:      tick,
		log:       log,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens one interval after Start.
func (t *Ticker) Start() error {
	_, err := t.scheduler.Every(t.every).SingletonMode().WaitForSchedule().Do(func() {
		t.log.Debugw("scheduler: tick")
		t.tick()
	})
	if err != nil {
		return err
	}

	t.scheduler.StartAsync()
	t.log.Infow("scheduler: started", "every", t.every)
	return nil
}

// Stop stops the scheduler and cancels any future ticks.
func (t *Ticker) Stop() {
	if t.scheduler != nil {
		t.scheduler.Stop()
	}
}
