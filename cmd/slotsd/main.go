package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/MJE43/pf-slots/internal/api"
	"github.com/MJE43/pf-slots/internal/auth"
	"github.com/MJE43/pf-slots/internal/config"
	"github.com/MJE43/pf-slots/internal/games"
	"github.com/MJE43/pf-slots/internal/live"
	"github.com/MJE43/pf-slots/internal/scan"
	"github.com/MJE43/pf-slots/internal/secrets"
	"github.com/MJE43/pf-slots/internal/seeds"
	"github.com/MJE43/pf-slots/internal/settlement"
	"github.com/MJE43/pf-slots/internal/slots"
	"github.com/MJE43/pf-slots/internal/spin"
	"github.com/MJE43/pf-slots/internal/store"
	"github.com/MJE43/pf-slots/internal/verify"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config/slots.yaml", "path to the YAML config (empty for defaults)")
	envFile := flag.String("env", ".env", "dotenv file loaded before the config")
	flag.Parse()

	logger := log.New(os.Stdout, "[SLOTSD] ", log.LstdFlags)
	logger.Printf("Starting pf-slots %s", api.GetVersionInfo())

	if err := run(*configPath, *envFile, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

func run(configPath, envFile string, logger *log.Logger) error {
	if err := config.LoadEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	game, err := cfg.Game.NewGame()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seedStore, err := openSeedStore(ctx, cfg, db, game)
	if err != nil {
		return err
	}
	defer seedStore.Close()

	vault := secrets.NewStore(cfg.Auth.SecretService, cfg.Auth.SecretFallback)
	issuer, err := newIssuer(cfg.Auth, vault)
	if err != nil {
		return err
	}
	settler, err := newSettler(cfg.Settlement, vault)
	if err != nil {
		return err
	}
	logger.Printf("seeds driver=%s settlement mode=%s hash=%s", cfg.Seeds.Driver, settler.Mode(), game.Commitment().Hasher().Name())

	hub := live.NewHub(log.New(os.Stdout, "[LIVE] ", log.LstdFlags), originChecker(cfg.Server.CORSOrigins))
	spins := spin.NewService(game, seedStore, db,
		spin.WithSettler(settler),
		spin.WithPublisher(hub),
	)
	registry := games.NewRegistry(games.NewSlotGame(game))

	requestTimeout := cfg.Server.ScanTimeout
	if requestTimeout <= 0 {
		requestTimeout = cfg.Server.WriteTimeout
	}
	server := api.NewServer(api.Deps{
		Game:           game,
		Spins:          spins,
		Verifier:       verify.NewService(game),
		Registry:       registry,
		Scanner:        scan.NewScanner(registry, game.Stream(), api.EngineVersion),
		Runs:           db,
		DB:             db,
		Hub:            hub,
		Issuer:         issuer,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: requestTimeout,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	server.SecurityLogger().LogSystemStartup(cfg.Server.Addr, map[string]interface{}{
		"seeds_driver":    cfg.Seeds.Driver,
		"settlement_mode": settler.Mode(),
		"hash":            game.Commitment().Hasher().Name(),
		"paylines":        len(game.Paylines()),
		"token_ttl":       cfg.Auth.TokenTTL.String(),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	reason := "signal"
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			reason = "listen_error"
			logger.Printf("server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
	server.SecurityLogger().LogSystemShutdown(reason, server.Uptime())
	return nil
}

func openDatabase(path string) (*store.SQLiteDB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := store.NewSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openSeedStore(ctx context.Context, cfg *config.Config, db *store.SQLiteDB, game *slots.Game) (seeds.Store, error) {
	opts := seeds.Options{Commitment: game.Commitment(), Stride: game.DrawsPerSpin()}
	switch cfg.Seeds.Driver {
	case config.DriverMemory:
		return seeds.NewMemoryStore(opts), nil
	case config.DriverRedis:
		return seeds.NewRedisStore(ctx, seeds.RedisConfig{
			Addr:     cfg.Seeds.Redis.Addr,
			Password: cfg.Seeds.Redis.Password,
			DB:       cfg.Seeds.Redis.DB,
		}, opts)
	case config.DriverPostgres:
		return seeds.NewPostgresStore(ctx, cfg.Seeds.Postgres.DSN, opts)
	default:
		return db.Seeds(opts), nil
	}
}

// newIssuer signs with the configured key, or with a key generated once and
// kept in the OS keychain.
func newIssuer(cfg config.AuthConfig, vault *secrets.Store) (*auth.Issuer, error) {
	key := cfg.SigningKey
	if key == "" {
		var err error
		if key, err = vault.Ensure(secrets.SigningKey, 32); err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
	}
	return auth.NewIssuer([]byte(key), cfg.TokenTTL)
}

func newSettler(cfg config.SettlementConfig, vault *secrets.Store) (settlement.Settler, error) {
	var apiKey string
	if cfg.Mode == settlement.ModeOnChain {
		var err error
		apiKey, err = vault.Get(secrets.SettlementAPIKey)
		if err != nil && !errors.Is(err, secrets.ErrNotFound) {
			return nil, fmt.Errorf("settlement api key: %w", err)
		}
	}
	return settlement.New(cfg.Mode, settlement.Config{
		Endpoint: cfg.Endpoint,
		Method:   cfg.Method,
		APIKey:   apiKey,
	})
}

func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
