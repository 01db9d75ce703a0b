// Command replay verifies an archived game by re-applying its actions to
// the genesis state and checking every recorded hash.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/conquest/internal/actionlog"
	"github.com/freeeve/conquest/pkg/conquest"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	dir := flag.String("dir", "data/actions", "Action archive directory")
	gameID := flag.String("game", "", "Game to replay (required)")
	dump := flag.Bool("state", false, "Print the final state as JSON")
	flag.Parse()

	if *gameID == "" {
		flag.Usage()
		os.Exit(2)
	}

	records, err := actionlog.ReadDir(*dir, *gameID)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *dir).Msg("Failed to read archive")
	}
	report, err := actionlog.Replay(records, *gameID)
	if err != nil {
		log.Fatal().Err(err).Str("gameId", *gameID).Msg("Replay failed")
	}

	final := report.Final
	log.Info().Str("gameId", report.GameID).Int("actions", report.Actions).Int64("version", final.Version).
		Str("status", string(final.Status)).Str("hash", conquest.HashState(final)).Msg("Replay verified")

	if *dump {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(final); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode state")
		}
		return
	}
	for i, st := range conquest.Standings(final) {
		fmt.Printf("%d. %-12s territories %3d  units %4d  energy %3d\n", i+1, st.PlayerID, st.Territories, st.Units, st.Energy)
	}
}
