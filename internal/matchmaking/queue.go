// Package matchmaking implements the per-variant FIFO join queue (spec 4.G):
// players queue for a named variant, and once enough are waiting (or a
// fill timer expires) a table is reserved and a Session created for them.
package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/registry"
	"github.com/vctt94/holdemserver/internal/session"
	"github.com/vctt94/holdemserver/internal/store"
)

// Variant is one matchmaking pool's configuration (spec 6 variant table).
type Variant struct {
	Name       string
	Config     engine.Config
	PlayersPerTable int
	MinBalance int64
}

// Ticket is one player's position in a variant's queue.
type Ticket struct {
	PlayerID string
	Balance  int64
	QueuedAt time.Time
	IsBot    bool
}

type variantQueue struct {
	mu      sync.Mutex
	waiting []*Ticket
	timer   *time.Timer
}

// Queue is the matchmaking component as a whole: one FIFO per variant, each
// independently locked so a reservation in one variant never blocks another.
type Queue struct {
	variants map[string]*Variant
	queues   map[string]*variantQueue
	registry *registry.Registry
	store    store.Store
	log      slog.Logger
}

// New builds a Queue over the given variants.
func New(variants []*Variant, reg *registry.Registry, st store.Store, log slog.Logger) *Queue {
	q := &Queue{
		variants: map[string]*Variant{},
		queues:   map[string]*variantQueue{},
		registry: reg,
		store:    st,
		log:      log,
	}
	for _, v := range variants {
		q.variants[v.Name] = v
		q.queues[v.Name] = &variantQueue{}
	}
	return q
}

// Join enqueues a player for a variant (spec 4.G joinQueue): validates the
// variant exists and (for cash variants) that the player can cover the
// minimum buy-in. It does not check whether the player is already seated in
// another session; a player already waiting in this variant's queue is
// rejected. It reserves a table immediately if this completes the variant's
// table size, otherwise arms a bot-fill timer.
func (q *Queue) Join(ctx context.Context, variant, playerID string, balance int64) (*QueueInfo, error) {
	v, ok := q.variants[variant]
	if !ok {
		return nil, fmt.Errorf("matchmaking: unknown variant %q", variant)
	}
	if v.Config.Category == engine.CategoryCash && balance < v.MinBalance {
		return nil, fmt.Errorf("matchmaking: balance %d below minimum buy-in %d", balance, v.MinBalance)
	}

	vq := q.queues[variant]
	vq.mu.Lock()
	for _, t := range vq.waiting {
		if t.PlayerID == playerID {
			vq.mu.Unlock()
			return nil, fmt.Errorf("matchmaking: already queued for %q", variant)
		}
	}
	vq.waiting = append(vq.waiting, &Ticket{PlayerID: playerID, Balance: balance, QueuedAt: time.Now()})

	var reserved []*Ticket
	if len(vq.waiting) >= v.PlayersPerTable {
		reserved = vq.waiting[:v.PlayersPerTable]
		vq.waiting = vq.waiting[v.PlayersPerTable:]
		if vq.timer != nil {
			vq.timer.Stop()
			vq.timer = nil
		}
	} else if vq.timer == nil && v.Config.BotFillAfterMs > 0 {
		vq.timer = time.AfterFunc(time.Duration(v.Config.BotFillAfterMs)*time.Millisecond, func() {
			q.fillWithBots(variant)
		})
	}
	info := &QueueInfo{Variant: variant, PositionInQueue: len(vq.waiting), PlayersWaiting: len(vq.waiting)}
	vq.mu.Unlock()

	if reserved != nil {
		if err := q.reserveTable(ctx, v, reserved); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// fillWithBots completes a variant's table with bots once the fill timer
// expires (spec 4.G), regardless of how many real players are waiting.
func (q *Queue) fillWithBots(variant string) {
	v := q.variants[variant]
	vq := q.queues[variant]

	vq.mu.Lock()
	if len(vq.waiting) == 0 {
		vq.timer = nil
		vq.mu.Unlock()
		return
	}
	reserved := vq.waiting
	vq.waiting = nil
	vq.timer = nil
	vq.mu.Unlock()

	for len(reserved) < v.PlayersPerTable {
		reserved = append(reserved, &Ticket{PlayerID: fmt.Sprintf("bot-%d", len(reserved)), QueuedAt: time.Now(), IsBot: true})
	}
	if err := q.reserveTable(context.Background(), v, reserved); err != nil {
		q.log.Errorf("matchmaking: bot-fill reservation for %q failed: %v", variant, err)
	}
}

// reserveTable atomically reserves a durable row for the matched players
// (spec 6 start_game_from_queue), rolling the tickets back into the queue if
// the store reservation fails, then creates the in-memory Session.
func (q *Queue) reserveTable(ctx context.Context, v *Variant, reserved []*Ticket) error {
	gameID := fmt.Sprintf("%s-%d", v.Name, time.Now().UnixNano())
	joinCode, err := q.registry.GenerateJoinCode()
	if err != nil {
		q.rollback(v.Name, reserved)
		return err
	}

	playerIDs := make([]string, len(reserved))
	for i, t := range reserved {
		playerIDs[i] = t.PlayerID
	}
	if err := q.store.StartGameFromQueue(ctx, gameID, joinCode, playerIDs); err != nil {
		q.rollback(v.Name, reserved)
		return fmt.Errorf("matchmaking: reserve table: %w", err)
	}

	s := session.New(gameID, joinCode, v.Config, false, "")
	var players []*session.Player
	for i, t := range reserved {
		players = append(players, session.NewPlayer(t.PlayerID, t.PlayerID, i+1, v.Config.StartingStack, t.IsBot))
	}
	if err := s.AddPlayers(players); err != nil {
		return fmt.Errorf("matchmaking: seat matched players: %w", err)
	}
	q.registry.Create(s)
	return nil
}

func (q *Queue) rollback(variant string, tickets []*Ticket) {
	vq := q.queues[variant]
	vq.mu.Lock()
	defer vq.mu.Unlock()
	vq.waiting = append(tickets, vq.waiting...)
}

// QueueInfo is the wire payload for spec 6's "queue_info"/"queue_update" events.
type QueueInfo struct {
	Variant         string
	PositionInQueue int
	PlayersWaiting  int
}
