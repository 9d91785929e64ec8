// Package heartbeat runs the one-second ticker that enforces action
// deadlines, auto-folds stalled players, and watches for tables that have
// been idle too long (spec 4.F).
package heartbeat

import (
	"context"
	"os"
	"time"

	"github.com/decred/slog"
	"github.com/prometheus/procfs"
	"golang.org/x/sync/errgroup"

	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/registry"
	"github.com/vctt94/holdemserver/internal/session"
)

const (
	tickInterval      = time.Second
	deadlineGrace     = time.Second
	watchdogEveryTick = 60

	maxStartingAge = 5 * time.Minute
	maxWaitingIdle = 30 * time.Minute
	maxActiveIdle  = 2 * time.Hour
	maxAnyIdle     = 10 * time.Minute
)

// Ticker drives the per-second sweep over every resident game.
type Ticker struct {
	registry *registry.Registry
	log      slog.Logger
	proc     procfs.Proc

	tickCount int
	stop      chan struct{}
	done      chan struct{}
}

// New builds a Ticker. procfs self-lookup failing is non-fatal: the watchdog
// simply skips its resource-usage log line when /proc is unavailable (e.g.
// in a sandboxed CI container).
func New(reg *registry.Registry, log slog.Logger) *Ticker {
	t := &Ticker{registry: reg, log: log, stop: make(chan struct{}), done: make(chan struct{})}
	if p, err := procfs.NewProc(os.Getpid()); err == nil {
		t.proc = p
	} else {
		log.Debugf("heartbeat: procfs unavailable, watchdog resource logging disabled: %v", err)
	}
	return t
}

// Run blocks, ticking once a second, until ctx is cancelled or Stop is called.
func (t *Ticker) Run(ctx context.Context) error {
	defer close(t.done)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.stop:
			return nil
		case <-ticker.C:
			t.tickCount++
			if err := t.sweep(ctx); err != nil {
				t.log.Warnf("heartbeat: sweep error: %v", err)
			}
			if t.tickCount%watchdogEveryTick == 0 {
				t.watchdog()
			}
		}
	}
}

// Stop signals Run to exit and waits for it to finish.
func (t *Ticker) Stop() {
	close(t.stop)
	<-t.done
}

// sweep fans out one deadline/idle check per resident game, bounded by an
// errgroup so a slow table's session mutex never stalls the whole tick.
func (t *Ticker) sweep(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(32)

	for _, gameID := range t.registry.ResidentGameIDs() {
		gameID := gameID
		g.Go(func() error {
			t.registry.SweepGame(gameID, sweepOne)
			return nil
		})
	}
	return g.Wait()
}

// sweepOne runs under the game's mutex (called from Registry.SweepGame)
// and returns whatever effects the deadline/idle check produces.
func sweepOne(s *session.Session) []engine.Effect {
	var effects []engine.Effect
	now := time.Now()

	if s.Hand != nil && !s.IsPaused {
		ctx := s.Hand.Context()
		if ctx.CurrentActorSeat != engine.NoSeat && !ctx.ActionDeadline.IsZero() {
			if now.After(ctx.ActionDeadline.Add(deadlineGrace)) {
				res, err := s.HandleAction(engine.Action{Seat: ctx.CurrentActorSeat, Kind: engine.ActionFold})
				if err == nil {
					effects = append(effects, res.Effects...)
				}
			}
		}
	}

	if idleTooLong(s, now) {
		effects = append(effects, engine.Effect{Kind: engine.EffectEndGame, Reason: "idle_timeout"})
	}
	return effects
}

func idleTooLong(s *session.Session, now time.Time) bool {
	idle := now.Sub(s.LastActivity)
	switch s.Status {
	case session.SessionStarting:
		return now.Sub(s.CreatedAt) > maxStartingAge
	case session.SessionWaiting:
		return idle > maxWaitingIdle
	case session.SessionActive:
		return idle > maxActiveIdle
	default:
		return idle > maxAnyIdle
	}
}

// watchdog runs every 60th tick: drains the persistence retry queue and logs
// this process's resource footprint so an operator can spot a registry that
// is accumulating resident games faster than it's shedding them.
func (t *Ticker) watchdog() {
	t.registry.DrainRetryQueue()

	if t.proc.PID == 0 {
		return
	}
	stat, err := t.proc.Stat()
	if err != nil {
		t.log.Debugf("heartbeat: watchdog stat: %v", err)
		return
	}
	t.log.Infof("heartbeat: watchdog rss=%d utime=%d stime=%d", stat.ResidentMemory(), stat.UTime, stat.STime)
}
