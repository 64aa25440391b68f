// Package schedule runs the control loop: it decides each tick whether to
// fetch fresh arrivals, whether to redraw the display, and how long to sleep,
// gated by the daily active window.
package schedule

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jgrahamc/ambibus/arrivals"
	"github.com/jgrahamc/ambibus/display"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

var (
	ticksCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_ticks",
		Help: "count of scheduler ticks, by active/idle state",
	}, []string{"state"})

	fetchesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrival_fetches",
		Help: "count of calls to the arrivals fetcher",
	})

	fetchErrorsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrival_fetch_errors",
		Help: "count of fetches that failed outright, as opposed to finding no buses",
	})

	rendersCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "display_renders",
		Help: "count of frames rendered to the display",
	})
)

// Window is a daily active period, both ends inclusive, in 24-hour HHMM
// integers (e.g. 730 to 930).
type Window struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Contains reports whether t's time of day falls inside the window.
func (w Window) Contains(t time.Time) bool {
	hhmm := t.Hour()*100 + t.Minute()
	return hhmm >= w.Start && hhmm <= w.End
}

// Config is fixed at startup.
type Config struct {
	FetchEvery  time.Duration // normal spacing between fetches
	NoInfoEvery time.Duration // spacing when the last fetch found nothing
	RenderEvery time.Duration // spacing between display redraws
	Tick        time.Duration // sleep between ticks while active
	IdleTick    time.Duration // sleep between ticks outside the window
	Window      Window
}

// Loop owns the fetch/render timers and the arrival cache.  The cache is read
// by the status page from other goroutines, so it lives behind a mutex.
type Loop struct {
	cfg     Config
	fetcher arrivals.Fetcher
	disp    *display.Display
	events  trace.EventLog

	mu         sync.Mutex
	rec        arrivals.Record
	lastFetch  time.Time
	lastRender time.Time
}

func New(cfg Config, f arrivals.Fetcher, d *display.Display) *Loop {
	return &Loop{
		cfg:     cfg,
		fetcher: f,
		disp:    d,
		events:  trace.NewEventLog("service", "schedule"),
	}
}

// Run ticks until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		sleep := l.tick(ctx, time.Now())
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return fmt.Errorf("waiting for next tick: %w", ctx.Err())
		}
	}
}

// tick makes one pass of the scheduling decisions and reports how long to
// sleep before the next one.
func (l *Loop) tick(ctx context.Context, now time.Time) time.Duration {
	if !l.cfg.Window.Contains(now) {
		// Re-blanked every idle tick, not just on the transition.
		ticksCounter.WithLabelValues("idle").Inc()
		l.disp.Blank()
		return l.cfg.IdleTick
	}
	ticksCounter.WithLabelValues("active").Inc()

	l.mu.Lock()
	rec := l.rec
	lastFetch, lastRender := l.lastFetch, l.lastRender
	l.mu.Unlock()

	// An empty cache means either no buses or a failed fetch; both retry
	// on the shorter interval.
	window := l.cfg.FetchEvery
	if len(rec.Arrivals) == 0 {
		window = l.cfg.NoInfoEvery
	}
	if now.Sub(lastFetch) >= window {
		fetchesCounter.Inc()
		arr, err := l.fetcher.Fetch(ctx)
		if err != nil {
			log.Printf("fetching arrivals: %v", err)
			l.events.Errorf("fetch: %v", err)
			fetchErrorsCounter.Inc()
			arr = nil
		} else {
			l.events.Printf("fetched %d arrivals", len(arr))
		}
		rec = arrivals.Record{Arrivals: arr, FetchedAt: now}
		l.mu.Lock()
		l.rec = rec
		l.lastFetch = now
		l.mu.Unlock()
	}

	if now.Sub(lastRender) >= l.cfg.RenderEvery {
		due := arrivals.Project(rec, now)
		if len(due) > 2 {
			due = due[:2]
		}
		mins := make([]int, 0, 2)
		for _, a := range due {
			mins = append(mins, a.Mins)
		}
		l.disp.Show(mins)
		l.events.Printf("show %v", mins)
		rendersCounter.Inc()
		l.mu.Lock()
		l.lastRender = now
		l.mu.Unlock()
	}

	return l.cfg.Tick
}

// Status is a point-in-time snapshot for the status page.
type Status struct {
	Active     bool               `json:"active"`
	Cached     arrivals.Record    `json:"cached"`
	Due        []arrivals.Arrival `json:"due"`
	LastRender time.Time          `json:"last_render"`
}

func (l *Loop) Status() Status {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Active:     l.cfg.Window.Contains(now),
		Cached:     l.rec,
		Due:        arrivals.Project(l.rec, now),
		LastRender: l.lastRender,
	}
}
