package seeds

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MJE43/pf-slots/internal/engine"
)

// A player's active pair and retired seeds share a hash tag so the scripts
// touching both stay in one cluster slot. The by-hash index only names the
// player.
const (
	keyActivePair    = "seeds:{%s}:active"
	keyRevealedSeeds = "seeds:{%s}:revealed"
	keyRevealedIndex = "seeds:revealed:%s"

	ttlRevealed = 90 * 24 * time.Hour

	maxRotateAttempts = 3
)

var errRotateContended = errors.New("seeds: redis rotate: active pair kept changing")

// RedisConfig addresses the Redis instance holding seed pairs.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps each active pair in a hash and advances the nonce with
// server-side scripts so concurrent servers never share a nonce.
type RedisStore struct {
	client *redis.Client
	opts   Options
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig, opts Options) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client, opts: opts.withDefaults()}, nil
}

// createPairScript installs ARGV as the active pair unless one exists and
// returns the active pair.
var createPairScript = redis.NewScript(`
	local key = KEYS[1]
	if redis.call("EXISTS", key) == 0 then
		redis.call("HSET", key, "server", ARGV[1], "hash", ARGV[2], "client", ARGV[3], "nonce", 0)
	end
	local p = redis.call("HMGET", key, "server", "hash", "client", "nonce")
	return {p[1], p[2], p[3], tostring(p[4])}
`)

// reserveScript claims the current nonce and advances it by ARGV[1]. KEYS[2]
// holds the player's retired seeds by hash.
var reserveScript = redis.NewScript(`
	local key = KEYS[1]
	if redis.call("EXISTS", key) == 0 then
		return redis.error_reply("no active pair")
	end
	local p = redis.call("HMGET", key, "server", "hash", "client")
	if redis.call("HEXISTS", KEYS[2], p[2]) == 1 then
		return redis.error_reply("revealed")
	end
	local next = redis.call("HINCRBY", key, "nonce", ARGV[1])
	return {p[1], p[2], p[3], tostring(next - tonumber(ARGV[1]))}
`)

// rotateScript swaps in the pair in ARGV, records the old seed in KEYS[2] and
// returns the old pair. It refuses when the active hash is no longer ARGV[5].
var rotateScript = redis.NewScript(`
	local key = KEYS[1]
	local p = redis.call("HMGET", key, "server", "hash", "client", "nonce")
	if not p[1] then
		return redis.error_reply("no active pair")
	end
	if p[2] ~= ARGV[5] then
		return redis.error_reply("stale")
	end
	local client = ARGV[3]
	if client == "" then
		client = p[3]
	end
	redis.call("HSET", KEYS[2], p[2], p[1])
	redis.call("EXPIRE", KEYS[2], ARGV[4])
	redis.call("HSET", key, "server", ARGV[1], "hash", ARGV[2], "client", client, "nonce", 0)
	return {p[1], p[2], p[3], tostring(p[4]), client}
`)

func (s *RedisStore) activeKey(player string) string {
	return fmt.Sprintf(keyActivePair, player)
}

func (s *RedisStore) revealedKey(player string) string {
	return fmt.Sprintf(keyRevealedSeeds, player)
}

func (s *RedisStore) ensure(ctx context.Context, player string) (engine.SeedPair, error) {
	fresh, err := engine.NewSeedPair(s.opts.Commitment, "")
	if err != nil {
		return engine.SeedPair{}, err
	}
	vals, err := createPairScript.Run(ctx, s.client, []string{s.activeKey(player)},
		fresh.ServerSeed, fresh.ServerSeedHash, fresh.ClientSeed).StringSlice()
	if err != nil {
		return engine.SeedPair{}, fmt.Errorf("seeds: redis create pair: %w", err)
	}
	return pairFromStrings(vals)
}

func pairFromStrings(vals []string) (engine.SeedPair, error) {
	if len(vals) < 4 {
		return engine.SeedPair{}, fmt.Errorf("seeds: redis returned %d fields", len(vals))
	}
	nonce, err := strconv.ParseUint(vals[3], 10, 64)
	if err != nil {
		return engine.SeedPair{}, fmt.Errorf("seeds: redis nonce %q: %w", vals[3], err)
	}
	return engine.SeedPair{ServerSeed: vals[0], ServerSeedHash: vals[1], ClientSeed: vals[2], Nonce: nonce}, nil
}

func (s *RedisStore) Current(ctx context.Context, player string) (engine.PublicSeedPair, error) {
	if err := CheckPlayer(player); err != nil {
		return engine.PublicSeedPair{}, err
	}
	p, err := s.ensure(ctx, player)
	if err != nil {
		return engine.PublicSeedPair{}, err
	}
	return p.Public(), nil
}

func (s *RedisStore) Reserve(ctx context.Context, player string) (Reservation, error) {
	if err := CheckPlayer(player); err != nil {
		return Reservation{}, err
	}
	if _, err := s.ensure(ctx, player); err != nil {
		return Reservation{}, err
	}
	keys := []string{s.activeKey(player), s.revealedKey(player)}
	vals, err := reserveScript.Run(ctx, s.client, keys, s.opts.Stride).StringSlice()
	if err != nil {
		if strings.Contains(err.Error(), "revealed") {
			return Reservation{}, fmt.Errorf("seeds: %w", ErrSeedRevealed)
		}
		return Reservation{}, fmt.Errorf("seeds: redis reserve: %w", err)
	}
	p, err := pairFromStrings(vals)
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{Pair: p, Nonce: p.Nonce}, nil
}

func (s *RedisStore) SetClientSeed(ctx context.Context, player, clientSeed string) (Revealed, error) {
	if err := CheckClientSeed(clientSeed); err != nil {
		return Revealed{}, err
	}
	return s.rotate(ctx, player, clientSeed)
}

func (s *RedisStore) Rotate(ctx context.Context, player string) (Revealed, error) {
	return s.rotate(ctx, player, "")
}

// rotate indexes the outgoing hash before swapping, then retries if another
// rotation replaced the pair in between.
func (s *RedisStore) rotate(ctx context.Context, player, clientSeed string) (Revealed, error) {
	if err := CheckPlayer(player); err != nil {
		return Revealed{}, err
	}
	server, err := engine.NewServerSeed()
	if err != nil {
		return Revealed{}, err
	}
	hash, err := s.opts.Commitment.Commit(server)
	if err != nil {
		return Revealed{}, err
	}

	keys := []string{s.activeKey(player), s.revealedKey(player)}
	for attempt := 0; attempt < maxRotateAttempts; attempt++ {
		cur, err := s.ensure(ctx, player)
		if err != nil {
			return Revealed{}, err
		}
		if err := s.client.Set(ctx, fmt.Sprintf(keyRevealedIndex, cur.ServerSeedHash), player, ttlRevealed).Err(); err != nil {
			return Revealed{}, fmt.Errorf("seeds: redis index: %w", err)
		}

		vals, err := rotateScript.Run(ctx, s.client, keys,
			server, hash, clientSeed, int(ttlRevealed.Seconds()), cur.ServerSeedHash).StringSlice()
		if err != nil {
			if strings.Contains(err.Error(), "stale") {
				continue
			}
			return Revealed{}, fmt.Errorf("seeds: redis rotate: %w", err)
		}
		old, err := pairFromStrings(vals)
		if err != nil {
			return Revealed{}, err
		}
		if len(vals) < 5 {
			return Revealed{}, errors.New("seeds: redis rotate returned no client seed")
		}
		return Revealed{
			ServerSeed:     old.ServerSeed,
			ServerSeedHash: old.ServerSeedHash,
			ClientSeed:     old.ClientSeed,
			NextNonce:      old.Nonce,
			RevealedAt:     time.Now().UTC(),
			Next:           engine.PublicSeedPair{ServerSeedHash: hash, ClientSeed: vals[4]},
		}, nil
	}
	return Revealed{}, errRotateContended
}

// RevealedSeed looks up a retired seed by its hash.
func (s *RedisStore) RevealedSeed(ctx context.Context, hash string) (string, bool, error) {
	player, err := s.client.Get(ctx, fmt.Sprintf(keyRevealedIndex, hash)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	seed, err := s.client.HGet(ctx, s.revealedKey(player), hash).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return seed, true, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
