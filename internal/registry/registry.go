// Package registry holds every live Session in memory, serializes access to
// each one behind its own mutex (spec 5), and rehydrates sessions from the
// durable store on demand (spec 4.H) instead of keeping the whole table
// population resident.
package registry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/decred/slog"
	"golang.org/x/sync/singleflight"

	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/events"
	"github.com/vctt94/holdemserver/internal/session"
	"github.com/vctt94/holdemserver/internal/store"
)

// Broadcaster is the transport-facing half of the Effect Processor (spec
// 4.E / 6): the registry never imports a concrete transport, it only ever
// calls this interface.
type Broadcaster interface {
	BroadcastEvent(gameID string, ev engine.Event)
	SendView(gameID, viewerID string, view session.SessionView)
}

// entry is one resident game: its Session plus the mutex that gives it the
// single-writer discipline spec 5 requires.
type entry struct {
	mu      sync.Mutex
	session *session.Session
}

// Registry is the top-level component wiring 4.E/4.H together.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	store       store.Store
	broadcaster Broadcaster
	processor   *events.Processor
	group       singleflight.Group
	log         slog.Logger

	retryMu    sync.Mutex
	retryQueue []retryItem
}

type retryItem struct {
	gameID  string
	snap    store.GameSnapshot
	attempt int
}

// New wires a registry around a store and broadcaster. queueSize/workers size
// the Effect Processor's worker pool.
func New(st store.Store, broadcaster Broadcaster, log slog.Logger, queueSize, workers int) *Registry {
	r := &Registry{
		entries:     map[string]*entry{},
		store:       st,
		broadcaster: broadcaster,
		processor:   events.NewProcessor(log, queueSize, workers),
		log:         log,
	}
	r.processor.Start()
	return r
}

// Close stops the Effect Processor's workers. In-flight jobs finish first.
func (r *Registry) Close() { r.processor.Stop() }

// Create registers a brand-new session (spec 4.D/4.G: either a freshly
// matched table or a host-created private game).
func (r *Registry) Create(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.GameID] = &entry{session: s}
}

// View returns the masked state for one viewer, rehydrating the game first
// if it is not already resident.
func (r *Registry) View(ctx context.Context, gameID, viewerID string) (session.SessionView, error) {
	e, err := r.getOrLoad(ctx, gameID)
	if err != nil {
		return session.SessionView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.ViewFor(viewerID), nil
}

// Dispatch applies one betting action under the game's mutex, then hands the
// resulting events/effects to the Effect Processor outside the lock (spec
// 4.E's ordering: mutate, then broadcast/persist/schedule).
func (r *Registry) Dispatch(ctx context.Context, gameID string, action engine.Action) error {
	e, err := r.getOrLoad(ctx, gameID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	res, err := e.session.HandleAction(action)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	r.processResult(gameID, e, res)
	return nil
}

// getOrLoad returns the resident entry for gameID, or rehydrates it from the
// store. Concurrent rehydration requests for the same gameID are coalesced
// by singleflight so only one LoadSnapshot call actually happens (spec 4.H).
func (r *Registry) getOrLoad(ctx context.Context, gameID string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[gameID]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	v, err, _ := r.group.Do(gameID, func() (interface{}, error) {
		r.mu.RLock()
		e, ok := r.entries[gameID]
		r.mu.RUnlock()
		if ok {
			return e, nil
		}

		snap, err := r.store.LoadSnapshot(ctx, gameID)
		if store.IsNotFound(err) {
			return nil, &engine.Error{Code: engine.CodeGameNotFound, Msg: gameID}
		}
		if err != nil {
			return nil, &engine.Error{Code: engine.CodeRehydrationFailure, Msg: err.Error()}
		}

		sess, err := decodeSnapshot(*snap)
		if err != nil {
			return nil, &engine.Error{Code: engine.CodeRehydrationFailure, Msg: err.Error()}
		}

		ent := &entry{session: sess}
		r.mu.Lock()
		r.entries[gameID] = ent
		r.mu.Unlock()
		return ent, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

// decodeSnapshot/encodeSnapshot delegate to the session package, which owns
// the canonical row<->Session mapping; pokerctl uses the same pair directly
// so both ever write the same on-disk shape.
func decodeSnapshot(snap store.GameSnapshot) (*session.Session, error) {
	return session.FromStoreSnapshot(snap)
}

func encodeSnapshot(s *session.Session) (store.GameSnapshot, error) {
	return session.ToStoreSnapshot(s)
}

// processResult submits the events/effects from one dispatch to the Effect
// Processor, outside whatever mutex was held while producing them.
func (r *Registry) processResult(gameID string, e *entry, res engine.Result) {
	r.processor.Submit(events.Job{GameID: gameID, Run: func() {
		for _, ev := range res.Events {
			r.broadcaster.BroadcastEvent(gameID, ev)
		}
		r.broadcastView(gameID, e)
		for _, eff := range res.Effects {
			r.executeEffect(gameID, e, eff)
		}
	}})
}

func (r *Registry) broadcastView(gameID string, e *entry) {
	e.mu.Lock()
	s := e.session
	viewerIDs := make([]string, 0, len(s.Players)+len(s.Spectators))
	for id := range s.Players {
		viewerIDs = append(viewerIDs, id)
	}
	for id := range s.Spectators {
		viewerIDs = append(viewerIDs, id)
	}
	views := make(map[string]session.SessionView, len(viewerIDs))
	for _, id := range viewerIDs {
		views[id] = s.ViewFor(id)
	}
	e.mu.Unlock()

	for id, v := range views {
		r.broadcaster.SendView(gameID, id, v)
	}
}

func (r *Registry) executeEffect(gameID string, e *entry, eff engine.Effect) {
	switch eff.Kind {
	case engine.EffectPersist:
		r.persistNow(gameID, e)

	case engine.EffectScheduleTransition:
		time.AfterFunc(time.Duration(eff.DelayMs)*time.Millisecond, func() {
			e.mu.Lock()
			res, err := e.session.AdvancePhase(eff.TargetPhase)
			e.mu.Unlock()
			if err != nil {
				r.log.Errorf("registry: scheduled transition for game %s failed: %v", gameID, err)
				return
			}
			r.processResult(gameID, e, res)
		})

	case engine.EffectScheduleReconnect:
		time.AfterFunc(time.Duration(eff.DelayMs)*time.Millisecond, func() {
			r.persistNow(gameID, e)
		})

	case engine.EffectEndGame:
		r.persistNow(gameID, e)
		r.mu.Lock()
		delete(r.entries, gameID)
		r.mu.Unlock()
	}
}

func (r *Registry) persistNow(gameID string, e *entry) {
	e.mu.Lock()
	snap, err := encodeSnapshot(e.session)
	e.mu.Unlock()
	if err != nil {
		r.log.Errorf("registry: encode snapshot for game %s: %v", gameID, err)
		return
	}
	r.persistWithRetry(gameID, snap, 1)
}

// persistWithRetry is spec 4.F's "persistence retry queue" surfaced here:
// an immediate failure gets up to 2 more attempts at 500ms before it is
// handed to the heartbeat's drain loop via enqueueRetry.
func (r *Registry) persistWithRetry(gameID string, snap store.GameSnapshot, attempt int) {
	if err := r.store.SaveSnapshot(context.Background(), snap); err != nil {
		r.log.Warnf("registry: persist game %s failed (attempt %d): %v", gameID, attempt, err)
		if attempt >= 3 {
			r.enqueueRetry(gameID, snap, attempt)
			return
		}
		time.AfterFunc(500*time.Millisecond, func() {
			r.persistWithRetry(gameID, snap, attempt+1)
		})
	}
}

func (r *Registry) enqueueRetry(gameID string, snap store.GameSnapshot, attempt int) {
	r.retryMu.Lock()
	defer r.retryMu.Unlock()
	r.retryQueue = append(r.retryQueue, retryItem{gameID: gameID, snap: snap, attempt: attempt})
}

// DrainRetryQueue is called by the heartbeat's 60th-tick watchdog (spec 4.F):
// drops anything that has already exhausted 3 attempts, retries the rest.
func (r *Registry) DrainRetryQueue() {
	r.retryMu.Lock()
	items := r.retryQueue
	r.retryQueue = nil
	r.retryMu.Unlock()

	for _, it := range items {
		if it.attempt >= 3 {
			r.log.Errorf("registry: dropping game %s snapshot after 3 failed persists", it.gameID)
			continue
		}
		r.persistWithRetry(it.gameID, it.snap, it.attempt+1)
	}
}

// ResidentGameIDs lists every game currently held in memory, for the
// heartbeat ticker's per-tick fan-out (spec 4.F).
func (r *Registry) ResidentGameIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// SweepGame runs fn against one resident game's session under its mutex and
// submits whatever effects it returns to the Effect Processor. A gameID that
// is no longer resident (removed since ResidentGameIDs was called) is simply
// skipped.
func (r *Registry) SweepGame(gameID string, fn func(s *session.Session) []engine.Effect) {
	r.mu.RLock()
	e, ok := r.entries[gameID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	effects := fn(e.session)
	e.mu.Unlock()
	if len(effects) > 0 {
		r.processResult(gameID, e, engine.Result{Effects: effects})
	}
}

// GenerateJoinCode produces a 5-character uppercase alphanumeric join code
// (spec 6), retrying on collision with an already-resident game up to 3
// times before giving up.
func (r *Registry) GenerateJoinCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // excludes easily-confused glyphs
	for attempt := 0; attempt < 3; attempt++ {
		code, err := randomCode(alphabet, 5)
		if err != nil {
			return "", err
		}
		if !r.joinCodeInUse(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("registry: exhausted join code attempts")
}

func (r *Registry) joinCodeInUse(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.session.JoinCode == code {
			return true
		}
	}
	return false
}

func randomCode(alphabet string, n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}
