package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"asteroid-arena/internal/protocol"

	"github.com/spf13/cobra"
)

// Command-line flags.
var (
	serverURL string
	bots      int
	duration  time.Duration
	codecName string
	fireEvery int
	inputRate int
	turnRate  float64
)

var rootCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Load-test an asteroid arena server with simulated pilots",
	Long: `swarm connects a number of bots to a running server. Each bot steers with
a slowly rotating heading, fires at a fixed cadence and counts the gameState
frames it receives. A per-bot report is printed when the run ends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bots <= 0 {
			return fmt.Errorf("--bots must be positive, got %d", bots)
		}
		if codecName != protocol.JSONName && codecName != protocol.MsgpackName {
			return fmt.Errorf("--codec must be %s or %s", protocol.JSONName, protocol.MsgpackName)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, duration)
		defer cancel()

		cfg := botConfig{
			URL:       serverURL,
			Codec:     protocol.Lookup(codecName),
			InputRate: inputRate,
			FireEvery: fireEvery,
			TurnRate:  turnRate,
		}

		log.Printf("🤖 Launching %d bots against %s (%s, %s)", bots, serverURL, codecName, duration)
		results := runSwarm(ctx, cfg, bots)
		printReport(cmd, results, duration)
		return nil
	},
}

type swarmResult struct {
	botResult
	Err error
}

// runSwarm starts n bots and waits for all of them.
func runSwarm(ctx context.Context, cfg botConfig, n int) []swarmResult {
	results := make([]swarmResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := runBot(ctx, cfg)
			results[i] = swarmResult{botResult: res, Err: err}
			if err != nil {
				log.Printf("⚠️ Bot %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	return results
}

func printReport(cmd *cobra.Command, results []swarmResult, d time.Duration) {
	sort.Slice(results, func(i, j int) bool { return results[i].Frames > results[j].Frames })

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "--------------------------------------------------")
	var total int64
	failed := 0
	for i, r := range results {
		if r.Err != nil && r.PlayerID == "" {
			failed++
			continue
		}
		total += r.Frames
		fmt.Fprintf(out, "  bot %-3d %-36s frames %-6d moves %-5d shots %-4d score %-5d health %d\n",
			i, r.PlayerID, r.Frames, r.Moves, r.Shots, r.LastScore, r.LastHealth)
	}
	fmt.Fprintln(out, "--------------------------------------------------")
	connected := len(results) - failed
	if connected > 0 && d > 0 {
		fmt.Fprintf(out, "  %d/%d connected, %.1f frames/s per bot\n",
			connected, len(results), float64(total)/float64(connected)/d.Seconds())
	} else {
		fmt.Fprintf(out, "  %d/%d connected\n", connected, len(results))
	}
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "url", "ws://localhost:10000/ws", "WebSocket endpoint of the server")
	rootCmd.Flags().IntVar(&bots, "bots", 10, "Number of concurrent bots")
	rootCmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "How long the bots play")
	rootCmd.Flags().StringVar(&codecName, "codec", protocol.JSONName, "Wire codec: json or msgpack")
	rootCmd.Flags().IntVar(&fireEvery, "fire-every", 5, "Fire after every N moves (0 disables firing)")
	rootCmd.Flags().IntVar(&inputRate, "rate", 20, "playerMove messages per second per bot")
	rootCmd.Flags().Float64Var(&turnRate, "turn", 0.05, "Heading change per move, in radians")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
