package conquest

import (
	"slices"
	"time"
)

// maxTiebreakRounds bounds d20 re-rolls before seating order decides.
const maxTiebreakRounds = 10

// openBidding starts the sealed-bid auction for the current year.
func openBidding(gs *GameState, at time.Time) {
	gs.Status = StatusBidding
	gs.CurrentPhase = PhaseCollectDeploy
	gs.CurrentPlayerIndex = 0
	gs.PendingConquest = nil
	waiting := make([]string, 0, len(gs.Players))
	for i := range gs.Players {
		p := &gs.Players[i]
		p.CurrentBid = nil
		p.PendingDecision = nil
		if !p.IsNPC && !p.Eliminated {
			waiting = append(waiting, p.ID)
		}
	}
	gs.Bidding = &BiddingState{
		Year:                gs.CurrentYear,
		BidsSubmitted:       make(map[string]int, len(waiting)),
		PlayersWaitingToBid: waiting,
	}
	setDeadline(gs, at)
}

// setDeadline arms the server-enforced deadline for the current bidding stage.
func setDeadline(gs *GameState, at time.Time) {
	gs.Deadline = nil
	if gs.Rules.BidWindowSeconds <= 0 || at.IsZero() {
		return
	}
	d := at.Add(time.Duration(gs.Rules.BidWindowSeconds) * time.Second)
	gs.Deadline = &d
}

func placeBid(gs *GameState, a Action, _ *applyCtx) error {
	d, err := decodeData[PlaceBidData](a)
	if err != nil {
		return err
	}
	return recordBid(gs, a.PlayerID, d.Amount)
}

func recordBid(gs *GameState, playerID string, amount int) error {
	b := gs.Bidding
	if gs.Status != StatusBidding || b == nil || b.BidsRevealed {
		return illegal("bidding is not open")
	}
	if !slices.Contains(b.PlayersWaitingToBid, playerID) {
		return illegal("player %s already bid or may not bid", playerID)
	}
	p := gs.Player(playerID)
	if amount < 0 || amount > p.Energy {
		return illegal("bid %d outside 0..%d", amount, p.Energy)
	}
	b.BidsSubmitted[playerID] = amount
	bid := amount
	p.CurrentBid = &bid
	b.PlayersWaitingToBid = slices.DeleteFunc(b.PlayersWaitingToBid, func(id string) bool { return id == playerID })
	return nil
}

func revealBids(gs *GameState, a Action, x *applyCtx) error {
	b := gs.Bidding
	if gs.Status != StatusBidding || b == nil || b.BidsRevealed {
		return illegal("no sealed bids to reveal")
	}
	if len(b.PlayersWaitingToBid) > 0 {
		return illegal("%d players have not bid", len(b.PlayersWaitingToBid))
	}

	var bidders []string
	for _, p := range gs.Players {
		if _, ok := b.BidsSubmitted[p.ID]; ok && !p.IsNPC {
			bidders = append(bidders, p.ID)
		}
	}
	if len(bidders) == 0 {
		return illegal("no bids submitted")
	}

	best := -1
	var tied []string
	for _, id := range bidders {
		switch amt := b.BidsSubmitted[id]; {
		case amt > best:
			best = amt
			tied = []string{id}
		case amt == best:
			tied = append(tied, id)
		}
	}
	winner := tied[0]
	if len(tied) > 1 {
		winner, b.TiebreakRoll = breakTie(x.roller, tied)
	}

	for _, id := range bidders {
		gs.Player(id).Energy -= b.BidsSubmitted[id]
	}

	order := make([]string, 0, len(bidders))
	order = append(order, winner)
	for _, id := range bidders {
		if id != winner {
			order = append(order, id)
		}
	}
	b.FinalTurnOrder = order
	b.HighestBidder = winner
	b.BidsRevealed = true
	if gs.TurnOrderHistory == nil {
		gs.TurnOrderHistory = make(map[int][]string)
	}
	gs.TurnOrderHistory[b.Year] = slices.Clone(order)
	gs.ActiveTurnOrder = slices.Clone(order)
	setDeadline(gs, a.At)
	return nil
}

// breakTie rolls a d20 for each tied player; the strictly highest roll wins.
// Players tied on the top roll re-roll among themselves; after
// maxTiebreakRounds the earliest seated contender wins. The returned rolls
// are those of the deciding round.
func breakTie(r Roller, tied []string) (string, map[string]int) {
	contenders := slices.Clone(tied)
	var rolls map[string]int
	for range maxTiebreakRounds {
		rolls = make(map[string]int, len(contenders))
		top := 0
		for _, id := range contenders {
			v := r.Roll(20)
			rolls[id] = v
			top = max(top, v)
		}
		var leaders []string
		for _, id := range contenders {
			if rolls[id] == top {
				leaders = append(leaders, id)
			}
		}
		if len(leaders) == 1 {
			return leaders[0], rolls
		}
		contenders = leaders
	}
	return contenders[0], rolls
}

func startYearTurns(gs *GameState, a Action, _ *applyCtx) error {
	b := gs.Bidding
	if gs.Status != StatusBidding || b == nil || !b.BidsRevealed {
		return illegal("bids have not been revealed")
	}
	gs.Status = StatusPlaying
	gs.CurrentPhase = PhaseCollectDeploy
	gs.CurrentPlayerIndex = 0
	gs.ActiveTurnOrder = slices.Clone(b.FinalTurnOrder)
	gs.Bidding = nil
	gs.Deadline = nil
	for i := range gs.Players {
		gs.Players[i].CurrentBid = nil
	}
	beginTurn(gs, gs.CurrentPlayerID())
	return nil
}

// expireDeadline forces the stalled bidding stage forward: missing bids
// become zero bids and are revealed, or revealed bids start the year.
func expireDeadline(gs *GameState, a Action, x *applyCtx) error {
	b := gs.Bidding
	if gs.Status != StatusBidding || b == nil {
		return illegal("no deadline is running")
	}
	if b.BidsRevealed {
		return startYearTurns(gs, a, x)
	}
	for _, id := range slices.Clone(b.PlayersWaitingToBid) {
		if err := recordBid(gs, id, 0); err != nil {
			return err
		}
	}
	return revealBids(gs, a, x)
}
