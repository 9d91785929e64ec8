// Package config loads the server's variant table (spec 3 GameConfig, spec 6
// "variant exists" validation) from a small JSON file, the way a deployment
// would hand the server its cash/casual table list without a recompile.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/matchmaking"
)

// VariantFile is the on-disk shape of the variant table.
type VariantFile struct {
	Variants []VariantEntry `json:"variants"`
}

// VariantEntry is one row of the variant table.
type VariantEntry struct {
	Name                   string `json:"name"`
	Category               string `json:"category"`
	SmallBlind             int64  `json:"smallBlind"`
	BigBlind               int64  `json:"bigBlind"`
	StartingStack          int64  `json:"startingStack"`
	MaxPlayers             int    `json:"maxPlayers"`
	PlayersPerTable        int    `json:"playersPerTable"`
	MinBalance             int64  `json:"minBalance"`
	TurnTimerMs            int64  `json:"turnTimerMs"`
	PhaseTransitionDelayMs int64  `json:"phaseTransitionDelayMs"`
	RunoutDelayMs          int64  `json:"runoutDelayMs"`
	BotFillAfterMs         int64  `json:"botFillAfterMs"`
}

// Load reads and validates a variant table from path.
func Load(path string) ([]*matchmaking.Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var file VariantFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(file.Variants) == 0 {
		return nil, fmt.Errorf("config: %s defines no variants", path)
	}

	out := make([]*matchmaking.Variant, 0, len(file.Variants))
	for _, e := range file.Variants {
		v, err := e.toVariant()
		if err != nil {
			return nil, fmt.Errorf("config: variant %q: %w", e.Name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (e VariantEntry) toVariant() (*matchmaking.Variant, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	if e.PlayersPerTable < 2 || e.PlayersPerTable > e.MaxPlayers {
		return nil, fmt.Errorf("playersPerTable %d invalid for maxPlayers %d", e.PlayersPerTable, e.MaxPlayers)
	}
	category := engine.Category(e.Category)
	switch category {
	case engine.CategoryCash, engine.CategoryCasual, engine.CategoryPrivate:
	default:
		return nil, fmt.Errorf("unknown category %q", e.Category)
	}

	return &matchmaking.Variant{
		Name: e.Name,
		Config: engine.Config{
			SmallBlind: e.SmallBlind, BigBlind: e.BigBlind, StartingStack: e.StartingStack,
			MaxPlayers: e.MaxPlayers, TurnTimerMs: e.TurnTimerMs,
			PhaseTransitionDelayMs: e.PhaseTransitionDelayMs, RunoutDelayMs: e.RunoutDelayMs,
			BotFillAfterMs: e.BotFillAfterMs, Category: category,
		},
		PlayersPerTable: e.PlayersPerTable,
		MinBalance:      e.MinBalance,
	}, nil
}
