package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/seeds"
)

// SeedStore is the SQLite seeds.Store. Rotation reveals the seed on the
// recorded spins in the same transaction.
type SeedStore struct {
	db   *SQLiteDB
	opts seeds.Options
}

// Seeds returns a seed store backed by this database.
func (s *SQLiteDB) Seeds(opts seeds.Options) *SeedStore {
	return &SeedStore{db: s, opts: opts.Normalize()}
}

var _ seeds.Store = (*SeedStore)(nil)

func (s *SeedStore) ensure(ctx context.Context, player string) error {
	fresh, err := engine.NewSeedPair(s.opts.Commitment, "")
	if err != nil {
		return err
	}
	_, err = s.db.db.ExecContext(ctx, `INSERT OR IGNORE INTO seed_pairs
		(player, server_seed, server_seed_hash, client_seed, nonce) VALUES (?, ?, ?, ?, 0)`,
		player, fresh.ServerSeed, fresh.ServerSeedHash, fresh.ClientSeed)
	if err != nil {
		return fmt.Errorf("store: create seed pair: %w", err)
	}
	return nil
}

func (s *SeedStore) Current(ctx context.Context, player string) (engine.PublicSeedPair, error) {
	if err := seeds.CheckPlayer(player); err != nil {
		return engine.PublicSeedPair{}, err
	}
	if err := s.ensure(ctx, player); err != nil {
		return engine.PublicSeedPair{}, err
	}
	var p engine.PublicSeedPair
	var nonce int64
	err := s.db.db.QueryRowContext(ctx, `SELECT server_seed_hash, client_seed, nonce FROM seed_pairs WHERE player = ?`, player).
		Scan(&p.ServerSeedHash, &p.ClientSeed, &nonce)
	if err != nil {
		return engine.PublicSeedPair{}, fmt.Errorf("store: load seed pair: %w", err)
	}
	p.Nonce = uint64(nonce)
	return p, nil
}

func (s *SeedStore) Reserve(ctx context.Context, player string) (seeds.Reservation, error) {
	if err := seeds.CheckPlayer(player); err != nil {
		return seeds.Reservation{}, err
	}
	if err := s.ensure(ctx, player); err != nil {
		return seeds.Reservation{}, err
	}
	var p engine.SeedPair
	var next int64
	err := s.db.db.QueryRowContext(ctx, `UPDATE seed_pairs SET nonce = nonce + ? WHERE player = ?
		RETURNING server_seed, server_seed_hash, client_seed, nonce`, int64(s.opts.Stride), player).
		Scan(&p.ServerSeed, &p.ServerSeedHash, &p.ClientSeed, &next)
	if err != nil {
		return seeds.Reservation{}, fmt.Errorf("store: reserve nonce: %w", err)
	}
	p.Nonce = uint64(next) - s.opts.Stride
	return seeds.Reservation{Pair: p, Nonce: p.Nonce}, nil
}

func (s *SeedStore) SetClientSeed(ctx context.Context, player, clientSeed string) (seeds.Revealed, error) {
	if err := seeds.CheckClientSeed(clientSeed); err != nil {
		return seeds.Revealed{}, err
	}
	return s.rotate(ctx, player, clientSeed)
}

func (s *SeedStore) Rotate(ctx context.Context, player string) (seeds.Revealed, error) {
	return s.rotate(ctx, player, "")
}

func (s *SeedStore) rotate(ctx context.Context, player, clientSeed string) (seeds.Revealed, error) {
	if err := seeds.CheckPlayer(player); err != nil {
		return seeds.Revealed{}, err
	}
	if err := s.ensure(ctx, player); err != nil {
		return seeds.Revealed{}, err
	}

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return seeds.Revealed{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var old engine.SeedPair
	var nextNonce int64
	// The write comes first so the transaction takes the lock up front.
	err = tx.QueryRowContext(ctx, `INSERT INTO revealed_seeds
		(server_seed_hash, player, server_seed, client_seed, next_nonce, revealed_at)
		SELECT server_seed_hash, player, server_seed, client_seed, nonce, ? FROM seed_pairs WHERE player = ?
		RETURNING server_seed, server_seed_hash, client_seed, next_nonce`, now, player).
		Scan(&old.ServerSeed, &old.ServerSeedHash, &old.ClientSeed, &nextNonce)
	if err != nil {
		return seeds.Revealed{}, fmt.Errorf("store: reveal seed: %w", err)
	}

	if clientSeed == "" {
		clientSeed = old.ClientSeed
	}
	next, err := engine.NewSeedPair(s.opts.Commitment, clientSeed)
	if err != nil {
		return seeds.Revealed{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE seed_pairs SET server_seed = ?, server_seed_hash = ?, client_seed = ?, nonce = 0
		WHERE player = ?`, next.ServerSeed, next.ServerSeedHash, next.ClientSeed, player); err != nil {
		return seeds.Revealed{}, fmt.Errorf("store: install seed pair: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE spins SET server_seed = ? WHERE server_seed_hash = ?`,
		old.ServerSeed, old.ServerSeedHash); err != nil {
		return seeds.Revealed{}, fmt.Errorf("store: back-fill spins: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return seeds.Revealed{}, err
	}

	return seeds.Revealed{
		ServerSeed:     old.ServerSeed,
		ServerSeedHash: old.ServerSeedHash,
		ClientSeed:     old.ClientSeed,
		NextNonce:      uint64(nextNonce),
		RevealedAt:     now,
		Next:           next.Public(),
	}, nil
}

// RevealedSeed looks up a retired seed by its hash.
func (s *SeedStore) RevealedSeed(ctx context.Context, hash string) (string, bool, error) {
	var seed string
	err := s.db.db.QueryRowContext(ctx, `SELECT server_seed FROM revealed_seeds WHERE server_seed_hash = ?`, hash).Scan(&seed)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return seed, true, nil
}

// Close is a no-op; the database is closed by its owner.
func (s *SeedStore) Close() error { return nil }
