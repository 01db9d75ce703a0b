package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/conquest/internal/actionlog"
	"github.com/freeeve/conquest/internal/bot"
	"github.com/freeeve/conquest/pkg/conquest"
)

// result is the outcome of one simulated game.
type result struct {
	GameID     string              `json:"gameId"`
	Seed       uint64              `json:"seed"`
	Winner     string              `json:"winner"`
	Strategies map[string]string   `json:"strategies"`
	Years      int                 `json:"years"`
	Actions    int64               `json:"actions"`
	Fallbacks  int                 `json:"fallbacks"`
	Standings  []conquest.Standing `json:"standings"`
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var (
		seatCfg    string
		numGames   int
		workers    int
		seed       uint64
		maxActions int
		archiveDir string
		jsonOut    bool
	)

	flag.StringVar(&seatCfg, "s", "heuristic,heuristic,random,passive", "Comma-separated strategy per seat")
	flag.IntVar(&numGames, "n", 1, "Number of games to run")
	flag.IntVar(&workers, "workers", 1, "Concurrency (parallel games)")
	flag.Uint64Var(&seed, "seed", 0, "Base seed (0 = random)")
	flag.IntVar(&maxActions, "max-actions", 20000, "Abort a game after this many actions")
	flag.StringVar(&archiveDir, "archive", "", "Archive every game's actions under this directory")
	flag.BoolVar(&jsonOut, "json", false, "Output results as JSON")
	flag.Parse()

	seats, err := parseSeats(seatCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Bad seat config")
	}
	if seed == 0 {
		seed = rand.Uint64()
	}

	var archive *actionlog.Writer
	if archiveDir != "" {
		archive = actionlog.NewWriter(archiveDir)
		defer archive.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	board := conquest.DefaultBoard()
	results := make([]*result, numGames)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, max(workers, 1))
	errCount := 0

	for i := range numGames {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := runGame(ctx, board, seats, fmt.Sprintf("botmatch-%d", idx+1), seed+uint64(idx), maxActions, archive)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error().Err(err).Int("game", idx+1).Msg("Game failed")
				errCount++
				return
			}
			results[idx] = res
			log.Info().Int("game", idx+1).Str("winner", res.Winner).Int64("actions", res.Actions).Int("years", res.Years).Msg("Game completed")
		}(i)
	}
	wg.Wait()

	if jsonOut {
		printJSON(results, numGames, errCount)
	} else {
		printSummary(results, errCount)
	}
}

func parseSeats(cfg string) ([]string, error) {
	names := strings.Split(cfg, ",")
	if len(names) < 2 {
		return nil, fmt.Errorf("need at least two seats, got %q", cfg)
	}
	valid := bot.Names()
	for i, n := range names {
		n = strings.TrimSpace(n)
		if !contains(valid, n) {
			return nil, fmt.Errorf("unknown strategy %q (have %s)", n, strings.Join(valid, ", "))
		}
		names[i] = n
	}
	return names, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// runGame plays one all-AI game to completion the way a session actor
// would: autopilot actions are applied in turn, with the passive strategy
// standing in whenever a strategy's action is rejected.
func runGame(ctx context.Context, board *conquest.Board, strategies []string, gameID string, seed uint64, maxActions int, archive *actionlog.Writer) (*result, error) {
	seats := make([]conquest.Seat, len(strategies))
	byPlayer := make(map[string]string, len(strategies))
	for i, s := range strategies {
		id := fmt.Sprintf("p%d", i+1)
		seats[i] = conquest.Seat{ID: id, Name: fmt.Sprintf("%s %d", s, i+1), IsAI: true}
		byPlayer[id] = s
	}

	now := time.Now().UTC()
	gs, err := conquest.NewGame(gameID, board, seats, seed, now)
	if err != nil {
		return nil, err
	}
	if gs, err = conquest.BeginBidding(gs, now); err != nil {
		return nil, err
	}
	if archive != nil {
		if err := archive.WriteGenesis(gs); err != nil {
			return nil, err
		}
	}

	pick := func(playerID string) bot.Strategy { return bot.ForName(byPlayer[playerID]) }
	fallbacks := 0
	for steps := 0; gs.Status != conquest.StatusFinished; steps++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if steps >= maxActions {
			return nil, fmt.Errorf("no winner after %d actions (year %d)", steps, gs.CurrentYear)
		}
		act, ok := bot.Autopilot(gs, pick)
		if !ok {
			return nil, fmt.Errorf("autopilot stalled in %s at version %d", gs.Status, gs.Version)
		}
		next, res := conquest.Apply(gs, conquest.Stamp(act, now))
		if !res.OK && act.PlayerID != conquest.SystemPlayerID {
			log.Debug().Str("gameId", gameID).Str("player", act.PlayerID).Str("action", string(act.Type)).Str("reason", res.Reason).Msg("Strategy rejected, falling back")
			fallbacks++
			if act, ok = (bot.PassiveStrategy{}).Decide(gs, act.PlayerID); ok {
				next, res = conquest.Apply(gs, conquest.Stamp(act, now))
			}
		}
		if !res.OK {
			return nil, fmt.Errorf("%s by %s rejected: %s", act.Type, act.PlayerID, res.Reason)
		}
		gs = next
		if archive != nil {
			if err := archive.WriteEntries(gameID, gs.ActionLog[len(gs.ActionLog)-1:]); err != nil {
				return nil, err
			}
		}
	}

	return &result{
		GameID:     gameID,
		Seed:       seed,
		Winner:     byPlayer[gs.WinnerID],
		Strategies: byPlayer,
		Years:      gs.CurrentYear,
		Actions:    gs.Version - 1,
		Fallbacks:  fallbacks,
		Standings:  conquest.Standings(gs),
	}, nil
}

func printSummary(results []*result, errCount int) {
	type stats struct {
		seats     int
		wins      int
		territory int
	}
	byStrategy := make(map[string]*stats)
	completed := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		completed++
		for _, st := range r.Standings {
			name := r.Strategies[st.PlayerID]
			s := byStrategy[name]
			if s == nil {
				s = &stats{}
				byStrategy[name] = s
			}
			s.seats++
			s.territory += st.Territories
		}
		if s := byStrategy[r.Winner]; s != nil {
			s.wins++
		}
	}

	fmt.Printf("\nResults (%d games):\n", completed)
	if errCount > 0 {
		fmt.Printf("  (%d games failed)\n", errCount)
	}
	names := make([]string, 0, len(byStrategy))
	for n := range byStrategy {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		s := byStrategy[n]
		fmt.Printf("  %-10s %d seats:  %d wins  -- avg territories: %.1f\n",
			n, s.seats, s.wins, float64(s.territory)/float64(s.seats))
	}
}

func printJSON(results []*result, total, errCount int) {
	out := struct {
		Total   int       `json:"total"`
		Errors  int       `json:"errors"`
		Results []*result `json:"results"`
	}{
		Total:   total,
		Errors:  errCount,
		Results: results,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
