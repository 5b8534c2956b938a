package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/MJE43/pf-slots/internal/seeds"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteDB implements History, Runs and (through Seeds) seeds.Store.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens path. File databases run in WAL mode and wait on locks;
// ":memory:" is pinned to one connection so every query sees the same data.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Ping reports whether the database answers.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded goose migrations. Running it again is a no-op.
func (s *SQLiteDB) Migrate() error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("migration setup failed: %w", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// SaveSpin records spin. A second spin at the same (server seed, nonce) is
// rejected with seeds.ErrNonceReuse.
func (s *SQLiteDB) SaveSpin(ctx context.Context, spin *Spin) error {
	if spin.ID == "" {
		spin.ID = uuid.New().String()
	}
	if spin.CreatedAt.IsZero() {
		spin.CreatedAt = time.Now().UTC()
	}
	grid, err := json.Marshal(spin.Grid)
	if err != nil {
		return fmt.Errorf("encode grid: %w", err)
	}
	lines := spin.WinningLines
	if lines == nil {
		lines = []int{}
	}
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode winning lines: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO spins (
		id, player, server_seed_hash, server_seed, client_seed, nonce, bet, grid,
		winning_lines, total_win, multiplier, jackpot, free_spins, free_spin,
		settlement_ref, created_at
	) VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)`,
		spin.ID, spin.Player, spin.ServerSeedHash, spin.ServerSeed, spin.ClientSeed,
		int64(spin.Nonce), spin.Bet.String(), string(grid), string(linesJSON),
		spin.TotalWin.String(), spin.Multiplier, boolInt(spin.Jackpot), spin.FreeSpins,
		boolInt(spin.FreeSpin), spin.SettlementRef, spin.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("store: %w: nonce %d already used under %.16s", seeds.ErrNonceReuse, spin.Nonce, spin.ServerSeedHash)
	}
	return err
}

// SetSettlementRef attaches a settlement receipt to a recorded spin.
func (s *SQLiteDB) SetSettlementRef(ctx context.Context, spinID, ref string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE spins SET settlement_ref = ? WHERE id = ?`, ref, spinID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const spinColumns = `id, player, server_seed_hash, COALESCE(server_seed, ''), client_seed, nonce,
	bet, grid, winning_lines, total_win, multiplier, jackpot, free_spins, free_spin,
	COALESCE(settlement_ref, ''), created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpin(row rowScanner) (*Spin, error) {
	var (
		spin                  Spin
		nonce                 int64
		bet, grid, lines, win string
		jackpot, freeSpin     int
	)
	err := row.Scan(&spin.ID, &spin.Player, &spin.ServerSeedHash, &spin.ServerSeed, &spin.ClientSeed,
		&nonce, &bet, &grid, &lines, &win, &spin.Multiplier, &jackpot, &spin.FreeSpins, &freeSpin,
		&spin.SettlementRef, &spin.CreatedAt)
	if err != nil {
		return nil, err
	}
	spin.Nonce = uint64(nonce)
	spin.Jackpot = jackpot == 1
	spin.FreeSpin = freeSpin == 1
	if spin.Bet, err = decimal.NewFromString(bet); err != nil {
		return nil, fmt.Errorf("decode bet: %w", err)
	}
	if spin.TotalWin, err = decimal.NewFromString(win); err != nil {
		return nil, fmt.Errorf("decode win: %w", err)
	}
	if err := json.Unmarshal([]byte(grid), &spin.Grid); err != nil {
		return nil, fmt.Errorf("decode grid: %w", err)
	}
	if err := json.Unmarshal([]byte(lines), &spin.WinningLines); err != nil {
		return nil, fmt.Errorf("decode winning lines: %w", err)
	}
	return &spin, nil
}

// GetSpin retrieves a spin by ID
func (s *SQLiteDB) GetSpin(ctx context.Context, id string) (*Spin, error) {
	spin, err := scanSpin(s.db.QueryRowContext(ctx, `SELECT `+spinColumns+` FROM spins WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return spin, err
}

// ListSpins returns a page of a player's spins, newest first.
func (s *SQLiteDB) ListSpins(ctx context.Context, query SpinsQuery) (*SpinsList, error) {
	page, perPage, offset := paginate(query.Page, query.PerPage, 50)

	var totalCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spins WHERE player = ?`, query.Player).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count spins: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+spinColumns+` FROM spins WHERE player = ?
		ORDER BY created_at DESC, nonce DESC LIMIT ? OFFSET ?`, query.Player, perPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query spins: %w", err)
	}
	defer rows.Close()

	spins := make([]Spin, 0, perPage)
	for rows.Next() {
		spin, err := scanSpin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan spin: %w", err)
		}
		spins = append(spins, *spin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spins: %w", err)
	}

	return &SpinsList{
		Spins:      spins,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages(totalCount, perPage),
	}, nil
}

// RevealSeed fills the server seed on every spin recorded under its hash and
// returns the number of spins updated.
func (s *SQLiteDB) RevealSeed(ctx context.Context, serverSeedHash, serverSeed string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE spins SET server_seed = ? WHERE server_seed_hash = ?`, serverSeed, serverSeedHash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AddFreeSpins credits n free spins and returns the new balance.
func (s *SQLiteDB) AddFreeSpins(ctx context.Context, player string, n int) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `INSERT INTO free_spins (player, balance) VALUES (?, ?)
		ON CONFLICT(player) DO UPDATE SET balance = balance + excluded.balance
		RETURNING balance`, player, n).Scan(&balance)
	return balance, err
}

// ConsumeFreeSpin takes one free spin if the player has any.
func (s *SQLiteDB) ConsumeFreeSpin(ctx context.Context, player string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE free_spins SET balance = balance - 1 WHERE player = ? AND balance > 0`, player)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// FreeSpins returns the player's balance.
func (s *SQLiteDB) FreeSpins(ctx context.Context, player string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM free_spins WHERE player = ?`, player).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
