package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/conquest/internal/bot"
)

func main() {
	url := flag.String("url", "http://localhost:8009", "server base URL (must run with DEV_MODE)")
	strategyName := flag.String("strategy", "heuristic", "remote bot strategy (heuristic, random, passive)")
	remote := flag.Int("remote", 2, "bots playing over the API")
	serverBots := flag.Int("server-bots", 1, "seats driven by the server's autopilot")
	idle := flag.Duration("idle", 5*time.Minute, "give up after this long without events")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()

	orch := bot.NewOrchestrator(*url, bot.ForName(*strategyName), *remote, *serverBots, *idle)
	winner, err := orch.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Bot orchestrator failed")
	}
	log.Info().Str("winner", winner).Msg("Bot game completed successfully")
}
