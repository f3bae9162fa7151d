package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"suikaarena/client"
	"suikaarena/config"
	"suikaarena/server"
)

var (
	flagURL   string
	flagRoom  string
	flagName  string
	flagMoves int
	flagEvery int
	flagBots  int
	flagSeed  int64
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Connect bots that drop balls at random positions",
	Long: `Starts one or more bots that join a room over WebSocket and keep
dropping balls at random x positions. Useful for load tests and demos.

Examples:
  suikaarena bot --name b1
  suikaarena bot --bots 8 --moves 50 --room stress`,
	RunE: runBot,
}

func init() {
	botCmd.Flags().StringVar(&flagURL, "url", "ws://localhost:8080/ws", "WebSocket endpoint")
	botCmd.Flags().StringVar(&flagRoom, "room", "", "Room id (default: server default room)")
	botCmd.Flags().StringVar(&flagName, "name", "bot", "Player name; a numeric suffix is added when --bots > 1")
	botCmd.Flags().IntVar(&flagMoves, "moves", 0, "Balls to drop before leaving (0 = play until disconnected)")
	botCmd.Flags().IntVar(&flagEvery, "every", 0, "Frames between drops (0 = placement cooldown + 1)")
	botCmd.Flags().IntVar(&flagBots, "bots", 1, "Number of bots to run")
	botCmd.Flags().Int64Var(&flagSeed, "seed", 1, "RNG seed for drop positions")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if err := server.InitLogger("", cfg.Server.LogLevel); err != nil {
		return err
	}
	defer server.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	errs := make([]error, flagBots)
	for i := 0; i < flagBots; i++ {
		name := flagName
		if flagBots > 1 {
			name = fmt.Sprintf("%s-%d", flagName, i)
		}
		bc := client.BotConfig{
			URL:   flagURL,
			Room:  flagRoom,
			Name:  name,
			Moves: flagMoves,
			Every: flagEvery,
			Seed:  flagSeed + int64(i),
			Game:  cfg.Game,
		}
		if err := bc.Validate(); err != nil {
			return err
		}
		wg.Add(1)
		go func(i int, bc client.BotConfig) {
			defer wg.Done()
			errs[i] = client.NewBot(bc, server.Log).Run(ctx)
		}(i, bc)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
