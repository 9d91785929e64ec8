package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/vctt94/holdemserver/internal/session"
	"github.com/vctt94/holdemserver/internal/store"
)

// version is set by ldflags during build.
var version = "dev"

// CLI is the private-host control plane exposed as a local administrative
// tool (spec 4.D): it operates directly against the durable store rather
// than over the wire, since a remote admin RPC surface is outside this
// implementation's scope (spec 1 non-goals list realtime transport and auth
// as external concerns).
type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	DB      string           `help:"Path to the SQLite database file" default:"holdemserver.sqlite"`

	View      ViewCmd      `cmd:"" help:"Print a game's current state as JSON"`
	Pause     PauseCmd     `cmd:"" help:"Pause a game"`
	Resume    ResumeCmd    `cmd:"" help:"Resume a paused game"`
	Approve   ApproveCmd   `cmd:"" help:"Approve a pending seat request"`
	Reject    RejectCmd    `cmd:"" help:"Reject a pending seat request"`
	Kick      KickCmd      `cmd:"" help:"Remove a seated player"`
	SetStack  SetStackCmd  `cmd:"" help:"Override a player's chip stack"`
	SetBlinds SetBlindsCmd `cmd:"" help:"Change a game's blind levels"`
	StartGame StartGameCmd `cmd:"" help:"Force the first hand to begin"`
}

type gameFlag struct {
	GameID string `arg:"" help:"Game ID"`
	HostID string `help:"Host ID issuing this command" default:""`
}

func (c *CLI) open() (*store.SQLiteStore, error) {
	return store.Open(c.DB)
}

func loadSession(ctx context.Context, st *store.SQLiteStore, gameID string) (*session.Session, error) {
	snap, err := st.LoadSnapshot(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return session.FromStoreSnapshot(*snap)
}

func saveSession(ctx context.Context, st *store.SQLiteStore, s *session.Session) error {
	snap, err := session.ToStoreSnapshot(s)
	if err != nil {
		return err
	}
	return st.SaveSnapshot(ctx, snap)
}

type ViewCmd struct {
	GameID   string `arg:"" help:"Game ID"`
	ViewerID string `help:"Viewer to mask state for" default:""`
}

func (c *ViewCmd) Run(cli *CLI) error {
	st, err := cli.open()
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := loadSession(context.Background(), st, c.GameID)
	if err != nil {
		return err
	}
	view := s.ViewFor(c.ViewerID)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

type PauseCmd struct{ gameFlag }

func (c *PauseCmd) Run(cli *CLI) error { return withSession(cli, c.GameID, func(s *session.Session) error { return s.Pause(c.HostID) }) }

type ResumeCmd struct{ gameFlag }

func (c *ResumeCmd) Run(cli *CLI) error {
	// The reissued turn_timer_started event/effect has nowhere to go in this
	// offline tool (no live broadcaster or registry); the deadline itself is
	// still re-armed on the persisted hand context before it's saved back.
	return withSession(cli, c.GameID, func(s *session.Session) error {
		_, err := s.Resume(c.HostID)
		return err
	})
}

type ApproveCmd struct {
	gameFlag
	RequesterID string `arg:"" help:"Player ID of the pending request"`
}

func (c *ApproveCmd) Run(cli *CLI) error {
	return withSession(cli, c.GameID, func(s *session.Session) error {
		return s.ApproveSeat(c.HostID, c.RequesterID)
	})
}

type RejectCmd struct {
	gameFlag
	RequesterID string `arg:"" help:"Player ID of the pending request"`
}

func (c *RejectCmd) Run(cli *CLI) error {
	return withSession(cli, c.GameID, func(s *session.Session) error { return s.RejectSeat(c.HostID, c.RequesterID) })
}

type KickCmd struct {
	gameFlag
	TargetID string `arg:"" help:"Player ID to remove"`
}

func (c *KickCmd) Run(cli *CLI) error {
	return withSession(cli, c.GameID, func(s *session.Session) error { return s.Kick(c.HostID, c.TargetID) })
}

type SetStackCmd struct {
	gameFlag
	TargetID string `arg:"" help:"Player ID"`
	Amount   int64  `arg:"" help:"New chip count"`
}

func (c *SetStackCmd) Run(cli *CLI) error {
	return withSession(cli, c.GameID, func(s *session.Session) error { return s.SetStack(c.HostID, c.TargetID, c.Amount) })
}

type SetBlindsCmd struct {
	gameFlag
	SmallBlind int64 `arg:"" help:"Small blind"`
	BigBlind   int64 `arg:"" help:"Big blind"`
}

func (c *SetBlindsCmd) Run(cli *CLI) error {
	return withSession(cli, c.GameID, func(s *session.Session) error { return s.SetBlinds(c.HostID, c.SmallBlind, c.BigBlind) })
}

type StartGameCmd struct{ gameFlag }

func (c *StartGameCmd) Run(cli *CLI) error {
	return withSession(cli, c.GameID, func(s *session.Session) error {
		_, err := s.StartGame(c.HostID)
		return err
	})
}

// withSession loads a session, runs mutate against it, and persists the
// result — a CLI-local stand-in for the registry's per-game mutex, since
// this tool never shares a process with a live registry.
func withSession(cli *CLI, gameID string, mutate func(*session.Session) error) error {
	st, err := cli.open()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	s, err := loadSession(ctx, st, gameID)
	if err != nil {
		return err
	}
	if err := mutate(s); err != nil {
		return err
	}
	if err := saveSession(ctx, st, s); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pokerctl"),
		kong.Description("Private-host control plane for a holdemserver game"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
