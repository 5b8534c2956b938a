// Command pfslots is the offline companion to slotsd: it generates seed
// commitments, verifies revealed spins and simulates nonce ranges or
// autoplay scripts without a server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/api"
	"github.com/MJE43/pf-slots/internal/autoplay"
	"github.com/MJE43/pf-slots/internal/config"
	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/games"
	"github.com/MJE43/pf-slots/internal/scan"
	"github.com/MJE43/pf-slots/internal/slots"
	"github.com/MJE43/pf-slots/internal/verify"
)

const usage = `usage: pfslots <command> [flags]

commands:
  seed      generate server/client seed pairs and their commitments
  verify    check a revealed server seed and recompute a spin
  simulate  replay a nonce range, or run an autoplay script
  version   print build information
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "seed":
		err = runSeed(rest, stdout, stderr)
	case "verify":
		err = runVerify(rest, stdout, stderr)
	case "simulate":
		err = runSimulate(ctx, rest, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, api.GetVersionInfo())
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return 2
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// loadGame builds the paytable from a config file, or the stock game when path
// is empty.
func loadGame(path string) (*slots.Game, error) {
	if path == "" {
		return config.Default().Game.NewGame()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Game.NewGame()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSeed(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("seed", stderr)
	count := fs.Int("count", 1, "number of pairs")
	client := fs.String("client", "", "client seed (random when empty)")
	hashName := fs.String("hash", engine.HashSHA256, "commitment hash: sha256, sha3-256 or blake2b-256")
	out := fs.String("out", "", "write JSON to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *count < 1 {
		fmt.Fprintln(stderr, "count must be at least 1")
		return errUsage
	}
	hasher, err := engine.HasherByName(*hashName)
	if err != nil {
		return err
	}
	commitment := engine.NewCommitment(hasher)

	pairs := make([]engine.SeedPair, 0, *count)
	for i := 0; i < *count; i++ {
		pair, err := engine.NewSeedPair(commitment, *client)
		if err != nil {
			return err
		}
		pairs = append(pairs, pair)
	}

	if *out == "" {
		return writeJSON(stdout, pairs)
	}
	f, err := os.OpenFile(*out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := writeJSON(f, pairs); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d seed pair(s) to %s\n", len(pairs), *out)
	return nil
}

func runVerify(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("verify", stderr)
	cfgPath := fs.String("config", "", "paytable config (stock game when empty)")
	server := fs.String("server", "", "revealed server seed")
	hash := fs.String("hash", "", "committed server seed hash")
	client := fs.String("client", "", "client seed")
	nonce := fs.Uint64("nonce", 0, "first nonce of the spin")
	gridJSON := fs.String("grid", "", `expected grid as JSON, e.g. [["A","B","C"],...] reel-major`)
	bet := fs.String("bet", "", "recompute the payout for this bet")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *server == "" || *hash == "" || *client == "" {
		fmt.Fprintln(stderr, "verify needs -server, -hash and -client")
		return errUsage
	}

	game, err := loadGame(*cfgPath)
	if err != nil {
		return err
	}
	req := verify.Request{
		ServerSeed:     *server,
		ServerSeedHash: *hash,
		ClientSeed:     *client,
		Nonce:          *nonce,
	}
	if *gridJSON != "" {
		var grid slots.Grid
		if err := json.Unmarshal([]byte(*gridJSON), &grid); err != nil {
			return fmt.Errorf("parse -grid: %w", err)
		}
		req.ExpectedGrid = &grid
	}
	if *bet != "" {
		amount, err := decimal.NewFromString(*bet)
		if err != nil {
			return fmt.Errorf("parse -bet: %w", err)
		}
		req.Bet = &amount
	}

	res, err := verify.NewService(game).Verify(req)
	if err != nil {
		return err
	}
	if err := writeJSON(stdout, res); err != nil {
		return err
	}
	if !res.HashValid || (res.GridValid != nil && !*res.GridValid) {
		return errors.New("verification failed")
	}
	return nil
}

func runSimulate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("simulate", stderr)
	cfgPath := fs.String("config", "", "paytable config (stock game when empty)")
	server := fs.String("server", "", "server seed (random when empty)")
	client := fs.String("client", "", "client seed (random when empty)")
	start := fs.Uint64("start", 0, "first nonce")
	spins := fs.Int("spins", 1000, "number of spins")
	bet := fs.String("bet", "5", "bet per spin for range scans")
	minMultiple := fs.Float64("min", 0, "list spins paying at least this multiple of the bet (0 lists none)")
	script := fs.String("script", "", "autoplay script file; runs the script instead of a range scan")
	balance := fs.String("balance", "500", "starting balance for autoplay")
	timeout := fs.Duration("timeout", time.Minute, "overall time limit")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *spins < 1 {
		fmt.Fprintln(stderr, "spins must be at least 1")
		return errUsage
	}

	game, err := loadGame(*cfgPath)
	if err != nil {
		return err
	}
	pair, err := engine.NewSeedPair(game.Commitment(), *client)
	if err != nil {
		return err
	}
	if *server != "" {
		if pair.ServerSeedHash, err = game.Commitment().Commit(*server); err != nil {
			return err
		}
		pair.ServerSeed = *server
	}
	pair.Nonce = *start

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if *script != "" {
		return simulateScript(ctx, game, pair, *script, *balance, *spins, stdout)
	}
	return simulateRange(ctx, game, pair, *spins, *bet, *minMultiple, *timeout, stdout)
}

func simulateRange(ctx context.Context, game *slots.Game, pair engine.SeedPair, spins int, bet string, minMultiple float64, timeout time.Duration, stdout io.Writer) error {
	slot := games.NewSlotGame(game)
	scanner := scan.NewScanner(games.NewRegistry(slot), game.Stream(), api.EngineVersion)
	stride := game.DrawsPerSpin()

	req := scan.ScanRequest{
		Game:       slot.Spec().ID,
		Seeds:      games.Seeds{Server: pair.ServerSeed, Client: pair.ClientSeed},
		NonceStart: pair.Nonce,
		NonceEnd:   pair.Nonce + uint64(spins-1)*stride,
		Params:     map[string]any{"bet": bet},
		TargetOp:   scan.OpGreaterEqual,
		TargetVal:  minMultiple,
		TimeoutMs:  int(timeout.Milliseconds()),
	}
	if minMultiple <= 0 {
		// Nothing pays a negative multiple, so only the summary is produced.
		req.TargetOp, req.TargetVal = scan.OpLess, 0
	}

	res, err := scanner.Scan(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(stdout, struct {
		ServerSeed     string       `json:"server_seed"`
		ServerSeedHash string       `json:"server_seed_hash"`
		ClientSeed     string       `json:"client_seed"`
		Hits           []scan.Hit   `json:"hits"`
		Summary        scan.Summary `json:"summary"`
		EngineVersion  string       `json:"engine_version"`
	}{pair.ServerSeed, pair.ServerSeedHash, pair.ClientSeed, res.Hits, res.Summary, res.EngineVersion})
}

func simulateScript(ctx context.Context, game *slots.Game, pair engine.SeedPair, path, balance string, spins int, stdout io.Writer) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	start, err := decimal.NewFromString(balance)
	if err != nil {
		return fmt.Errorf("parse -balance: %w", err)
	}
	report, err := autoplay.Run(ctx, game, string(source), autoplay.Config{
		Pair:     pair,
		Balance:  start,
		MaxSpins: spins,
	})
	if err != nil {
		return err
	}
	return writeJSON(stdout, struct {
		ServerSeed     string `json:"server_seed"`
		ServerSeedHash string `json:"server_seed_hash"`
		ClientSeed     string `json:"client_seed"`
		*autoplay.Report
	}{pair.ServerSeed, pair.ServerSeedHash, pair.ClientSeed, report})
}
