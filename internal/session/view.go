package session

import (
	"github.com/vctt94/holdemserver/internal/cards"
	"github.com/vctt94/holdemserver/internal/engine"
)

// CardView is the wire-safe rendering of a card (spec 6 per-viewer state).
type CardView struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

// PlayerView is one seat's masked state for a given viewer (spec 6): hole
// cards are present only for the viewer's own seat, a showdown-revealed
// seat, or a seat the owner voluntarily revealed via RevealCard.
type PlayerView struct {
	PlayerID    string      `json:"playerId"`
	DisplayName string      `json:"displayName"`
	Seat        int         `json:"seat"`
	Chips       int64       `json:"chips"`
	CurrentBet  int64       `json:"currentBet"`
	Status      Status      `json:"status"`
	Folded      bool        `json:"folded"`
	AllIn       bool        `json:"allIn"`
	IsHost      bool        `json:"isHost"`
	HoleCards   []CardView  `json:"holeCards,omitempty"`
	HandLabel   string      `json:"handLabel,omitempty"`
}

// SessionView is the full per-viewer state broadcast after every effect
// (spec 6 "gameState"): every private field (other players' hole cards,
// pending requests from other users) is stripped before it leaves the
// session boundary.
type SessionView struct {
	GameID         string       `json:"gameId"`
	JoinCode       string       `json:"joinCode,omitempty"`
	Status         SessionStatus `json:"status"`
	HostID         string       `json:"hostId"`
	IsPaused       bool         `json:"isPaused"`
	Players        []PlayerView `json:"players"`
	CommunityCards []CardView   `json:"communityCards"`
	Pot            int64        `json:"pot"`
	Phase          string       `json:"phase,omitempty"`
	CurrentActorID string       `json:"currentActorId,omitempty"`
	HandNumber     int          `json:"handNumber,omitempty"`
	IsViewerHost   bool         `json:"isViewerHost"`
	HasPendingSelf bool         `json:"hasPendingSelf"`
}

// ViewFor builds the masked state for one viewer (spec 4.D, 6). viewerID may
// be "" for a pure spectator with no seat and no pending request of their own.
func (s *Session) ViewFor(viewerID string) SessionView {
	view := SessionView{
		GameID:       s.GameID,
		Status:       s.Status,
		HostID:       s.HostID,
		IsPaused:     s.IsPaused,
		IsViewerHost: viewerID != "" && viewerID == s.HostID,
	}
	if viewerID == s.HostID {
		view.JoinCode = s.JoinCode
	}
	for _, r := range s.PendingRequests {
		if r.UserID == viewerID {
			view.HasPendingSelf = true
			break
		}
	}

	var pot int64
	var communityCards []cards.Card
	var phase engine.Phase
	currentActorSeat := engine.NoSeat
	var handNumber int
	if s.Hand != nil {
		hctx := s.Hand.Context()
		for _, p := range hctx.Pots {
			pot += p.Amount
		}
		communityCards = hctx.CommunityCards
		phase = hctx.Phase
		currentActorSeat = hctx.CurrentActorSeat
		handNumber = hctx.HandNumber
	}

	for _, cc := range communityCards {
		view.CommunityCards = append(view.CommunityCards, toCardView(cc))
	}
	view.Pot = pot
	view.Phase = string(phase)
	view.HandNumber = handNumber

	showAll := phase == engine.PhaseShowdown || phase == engine.PhaseComplete
	for _, p := range s.SeatedPlayers() {
		pv := PlayerView{
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
			Chips:       p.Chips,
			Status:      p.Status,
			IsHost:      p.IsHost,
		}
		if p.Seat == currentActorSeat {
			view.CurrentActorID = p.ID
		}
		if s.Hand != nil {
			if part := s.Hand.Context().BySeat(p.Seat); part != nil {
				pv.CurrentBet = part.CurrentBet
				pv.Folded = part.Folded
				pv.AllIn = part.AllIn
				if part.HandDescription != "" && showAll {
					pv.HandLabel = part.HandDescription
				}
				pv.HoleCards = maskedHoleCards(part.HoleCards, p, viewerID, showAll && !part.Folded)
			}
		}
		view.Players = append(view.Players, pv)
	}
	return view
}

// maskedHoleCards applies spec 6's visibility rule: a viewer always sees
// their own cards outside the deal-in-progress instant, every viewer sees
// every non-folded hand at showdown/complete, and any card a player has
// explicitly revealed is shown to everyone in between.
func maskedHoleCards(hole []cards.Card, owner *Player, viewerID string, showAll bool) []CardView {
	if len(hole) == 0 {
		return nil
	}
	isOwner := viewerID != "" && viewerID == owner.ID
	out := make([]CardView, 0, len(hole))
	anyVisible := false
	for i, c := range hole {
		visible := isOwner || showAll || owner.RevealedCards[i]
		if visible {
			out = append(out, toCardView(c))
			anyVisible = true
		} else {
			out = append(out, CardView{})
		}
	}
	if !anyVisible {
		return nil
	}
	return out
}

func toCardView(c cards.Card) CardView {
	return CardView{Rank: string(c.Rank()), Suit: string(c.Suit())}
}
