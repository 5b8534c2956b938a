package seeds

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MJE43/pf-slots/internal/engine"
)

const (
	pairsTable    = "seed_pairs"
	revealedTable = "revealed_seeds"

	colPlayer     = "player"
	colServerSeed = "server_seed"
	colSeedHash   = "server_seed_hash"
	colClientSeed = "client_seed"
	colNonce      = "nonce"
	colNextNonce  = "next_nonce"
	colRevealedAt = "revealed_at"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS seed_pairs (
	player           TEXT PRIMARY KEY,
	server_seed      TEXT NOT NULL,
	server_seed_hash TEXT NOT NULL UNIQUE,
	client_seed      TEXT NOT NULL,
	nonce            BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS revealed_seeds (
	server_seed_hash TEXT PRIMARY KEY,
	player           TEXT NOT NULL,
	server_seed      TEXT NOT NULL,
	client_seed      TEXT NOT NULL,
	next_nonce       BIGINT NOT NULL,
	revealed_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresStore keeps pairs in Postgres. Reservation is a single
// UPDATE ... RETURNING; rotation runs in a transaction.
type PostgresStore struct {
	pool      *pgxpool.Pool
	txManager trm.Manager
	getter    *trmpgx.CtxGetter
	opts      Options
}

// NewPostgresStore connects to dsn and creates the tables if needed.
func NewPostgresStore(ctx context.Context, dsn string, opts Options) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("seeds: postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("seeds: postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("seeds: postgres schema: %w", err)
	}
	m, err := manager.New(trmpgx.NewDefaultFactory(pool))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("seeds: transaction manager: %w", err)
	}
	return &PostgresStore{
		pool:      pool,
		txManager: m,
		getter:    trmpgx.DefaultCtxGetter,
		opts:      opts.withDefaults(),
	}, nil
}

func (s *PostgresStore) conn(ctx context.Context) trmpgx.Tr {
	return s.getter.DefaultTrOrDB(ctx, s.pool)
}

// ensure inserts a fresh pair when the player has none.
func (s *PostgresStore) ensure(ctx context.Context, player string) error {
	fresh, err := engine.NewSeedPair(s.opts.Commitment, "")
	if err != nil {
		return err
	}
	query, args, err := sq.Insert(pairsTable).
		Columns(colPlayer, colServerSeed, colSeedHash, colClientSeed, colNonce).
		Values(player, fresh.ServerSeed, fresh.ServerSeedHash, fresh.ClientSeed, 0).
		Suffix("ON CONFLICT (" + colPlayer + ") DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).Exec(ctx, query, args...)
	return err
}

func (s *PostgresStore) load(ctx context.Context, player string, forUpdate bool) (engine.SeedPair, error) {
	b := sq.Select(colServerSeed, colSeedHash, colClientSeed, colNonce).
		From(pairsTable).
		Where(sq.Eq{colPlayer: player}).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return engine.SeedPair{}, err
	}
	var p engine.SeedPair
	var nonce int64
	err = s.conn(ctx).QueryRow(ctx, query, args...).Scan(&p.ServerSeed, &p.ServerSeedHash, &p.ClientSeed, &nonce)
	if err != nil {
		return engine.SeedPair{}, err
	}
	p.Nonce = uint64(nonce)
	return p, nil
}

func (s *PostgresStore) Current(ctx context.Context, player string) (engine.PublicSeedPair, error) {
	if err := CheckPlayer(player); err != nil {
		return engine.PublicSeedPair{}, err
	}
	if err := s.ensure(ctx, player); err != nil {
		return engine.PublicSeedPair{}, fmt.Errorf("seeds: create pair: %w", err)
	}
	p, err := s.load(ctx, player, false)
	if err != nil {
		return engine.PublicSeedPair{}, fmt.Errorf("seeds: load pair: %w", err)
	}
	return p.Public(), nil
}

func (s *PostgresStore) Reserve(ctx context.Context, player string) (Reservation, error) {
	if err := CheckPlayer(player); err != nil {
		return Reservation{}, err
	}
	if err := s.ensure(ctx, player); err != nil {
		return Reservation{}, fmt.Errorf("seeds: create pair: %w", err)
	}

	query, args, err := sq.Update(pairsTable).
		Set(colNonce, sq.Expr(colNonce+" + ?", int64(s.opts.Stride))).
		Where(sq.Eq{colPlayer: player}).
		Suffix("RETURNING " + colServerSeed + ", " + colSeedHash + ", " + colClientSeed + ", " + colNonce).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return Reservation{}, err
	}

	var p engine.SeedPair
	var next int64
	if err := s.conn(ctx).QueryRow(ctx, query, args...).Scan(&p.ServerSeed, &p.ServerSeedHash, &p.ClientSeed, &next); err != nil {
		return Reservation{}, fmt.Errorf("seeds: reserve: %w", err)
	}
	p.Nonce = uint64(next) - s.opts.Stride
	return Reservation{Pair: p, Nonce: p.Nonce}, nil
}

func (s *PostgresStore) SetClientSeed(ctx context.Context, player, clientSeed string) (Revealed, error) {
	if err := CheckClientSeed(clientSeed); err != nil {
		return Revealed{}, err
	}
	return s.rotate(ctx, player, clientSeed)
}

func (s *PostgresStore) Rotate(ctx context.Context, player string) (Revealed, error) {
	return s.rotate(ctx, player, "")
}

func (s *PostgresStore) rotate(ctx context.Context, player, clientSeed string) (Revealed, error) {
	if err := CheckPlayer(player); err != nil {
		return Revealed{}, err
	}
	if err := s.ensure(ctx, player); err != nil {
		return Revealed{}, fmt.Errorf("seeds: create pair: %w", err)
	}

	var rev Revealed
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		old, err := s.load(ctx, player, true)
		if err != nil {
			return err
		}
		client := clientSeed
		if client == "" {
			client = old.ClientSeed
		}
		next, err := engine.NewSeedPair(s.opts.Commitment, client)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		insert, args, err := sq.Insert(revealedTable).
			Columns(colSeedHash, colPlayer, colServerSeed, colClientSeed, colNextNonce, colRevealedAt).
			Values(old.ServerSeedHash, player, old.ServerSeed, old.ClientSeed, int64(old.Nonce), now).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := s.conn(ctx).Exec(ctx, insert, args...); err != nil {
			return fmt.Errorf("record revealed seed: %w", err)
		}

		update, args, err := sq.Update(pairsTable).
			Set(colServerSeed, next.ServerSeed).
			Set(colSeedHash, next.ServerSeedHash).
			Set(colClientSeed, next.ClientSeed).
			Set(colNonce, 0).
			Where(sq.Eq{colPlayer: player}).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := s.conn(ctx).Exec(ctx, update, args...); err != nil {
			return fmt.Errorf("install new pair: %w", err)
		}

		rev = Revealed{
			ServerSeed:     old.ServerSeed,
			ServerSeedHash: old.ServerSeedHash,
			ClientSeed:     old.ClientSeed,
			NextNonce:      old.Nonce,
			RevealedAt:     now,
			Next:           next.Public(),
		}
		return nil
	})
	if err != nil {
		return Revealed{}, fmt.Errorf("seeds: rotate: %w", err)
	}
	return rev, nil
}

// RevealedSeed looks up a retired seed by its hash.
func (s *PostgresStore) RevealedSeed(ctx context.Context, hash string) (string, bool, error) {
	query, args, err := sq.Select(colServerSeed).
		From(revealedTable).
		Where(sq.Eq{colSeedHash: hash}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return "", false, err
	}
	var seed string
	err = s.conn(ctx).QueryRow(ctx, query, args...).Scan(&seed)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return seed, true, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
