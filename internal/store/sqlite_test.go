package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/seeds"
	"github.com/MJE43/pf-slots/internal/slots"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func testSpin(player string, nonce uint64) *Spin {
	return &Spin{
		Player:         player,
		ServerSeedHash: "hash1",
		ClientSeed:     "client1",
		Nonce:          nonce,
		Bet:            decimal.NewFromInt(10),
		Grid: slots.MustGrid([][]string{
			{"low-gear", "low-gear", "low-gear"},
			{"mid-robot", "low-gear", "free-spin"},
			{"low-token", "low-gear", "mid-helmet"},
		}),
		WinningLines: []int{2},
		TotalWin:     decimal.RequireFromString("50.5"),
		Multiplier:   1,
		FreeSpins:    1,
	}
}

func TestSaveAndGetSpin(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	spin := testSpin("alice", 0)
	if err := db.SaveSpin(ctx, spin); err != nil {
		t.Fatalf("SaveSpin: %v", err)
	}
	if spin.ID == "" {
		t.Fatal("SaveSpin did not assign an ID")
	}

	got, err := db.GetSpin(ctx, spin.ID)
	if err != nil {
		t.Fatalf("GetSpin: %v", err)
	}
	if !got.Grid.Equal(spin.Grid) {
		t.Errorf("grid round trip changed: %v", got.Grid.Cells())
	}
	if !got.TotalWin.Equal(spin.TotalWin) || !got.Bet.Equal(spin.Bet) {
		t.Errorf("amounts = %s/%s", got.Bet, got.TotalWin)
	}
	if len(got.WinningLines) != 1 || got.WinningLines[0] != 2 {
		t.Errorf("WinningLines = %v", got.WinningLines)
	}
	if got.ServerSeed != "" {
		t.Error("server seed present before reveal")
	}

	if _, err := db.GetSpin(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing spin err = %v", err)
	}
}

func TestSaveSpinRejectsNonceReuse(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveSpin(ctx, testSpin("alice", 9)); err != nil {
		t.Fatal(err)
	}
	err := db.SaveSpin(ctx, testSpin("alice", 9))
	if !errors.Is(err, seeds.ErrNonceReuse) {
		t.Errorf("duplicate nonce err = %v, want ErrNonceReuse", err)
	}
}

func TestListSpinsPagination(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		s := testSpin("alice", uint64(i*9))
		s.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := db.SaveSpin(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.SaveSpin(ctx, testSpin("bob", 999)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		page, perPage int
		wantLen       int
		wantFirst     uint64
	}{
		{1, 10, 10, 24 * 9},
		{2, 10, 10, 14 * 9},
		{3, 10, 5, 4 * 9},
		{4, 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page_%d", tt.page), func(t *testing.T) {
			list, err := db.ListSpins(ctx, SpinsQuery{Player: "alice", Page: tt.page, PerPage: tt.perPage})
			if err != nil {
				t.Fatal(err)
			}
			if list.TotalCount != 25 || list.TotalPages != 3 {
				t.Errorf("TotalCount/TotalPages = %d/%d, want 25/3", list.TotalCount, list.TotalPages)
			}
			if len(list.Spins) != tt.wantLen {
				t.Fatalf("got %d spins, want %d", len(list.Spins), tt.wantLen)
			}
			if tt.wantLen > 0 && list.Spins[0].Nonce != tt.wantFirst {
				t.Errorf("first nonce = %d, want %d", list.Spins[0].Nonce, tt.wantFirst)
			}
		})
	}
}

func TestRevealSeed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := db.SaveSpin(ctx, testSpin("alice", uint64(i))); err != nil {
			t.Fatal(err)
		}
	}
	n, err := db.RevealSeed(ctx, "hash1", "secret")
	if err != nil || n != 3 {
		t.Fatalf("RevealSeed = %d, %v; want 3", n, err)
	}
	list, _ := db.ListSpins(ctx, SpinsQuery{Player: "alice"})
	for _, s := range list.Spins {
		if s.ServerSeed != "secret" {
			t.Errorf("spin %d not revealed", s.Nonce)
		}
	}
}

func TestFreeSpinLedger(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if ok, err := db.ConsumeFreeSpin(ctx, "alice"); err != nil || ok {
		t.Fatalf("consume with no balance = %v, %v", ok, err)
	}
	if n, err := db.AddFreeSpins(ctx, "alice", 2); err != nil || n != 2 {
		t.Fatalf("AddFreeSpins = %d, %v", n, err)
	}
	if n, _ := db.AddFreeSpins(ctx, "alice", 1); n != 3 {
		t.Errorf("balance after second add = %d, want 3", n)
	}
	for i := 0; i < 3; i++ {
		if ok, err := db.ConsumeFreeSpin(ctx, "alice"); err != nil || !ok {
			t.Fatalf("consume %d = %v, %v", i, ok, err)
		}
	}
	if ok, _ := db.ConsumeFreeSpin(ctx, "alice"); ok {
		t.Error("consumed a free spin from an empty balance")
	}
	if n, _ := db.FreeSpins(ctx, "alice"); n != 0 {
		t.Errorf("final balance = %d", n)
	}
}

func TestSettlementRef(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	spin := testSpin("alice", 0)
	if err := db.SaveSpin(ctx, spin); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSettlementRef(ctx, spin.ID, "sim-123"); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetSpin(ctx, spin.ID)
	if got.SettlementRef != "sim-123" {
		t.Errorf("SettlementRef = %q", got.SettlementRef)
	}
	if err := db.SetSettlementRef(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing spin err = %v", err)
	}
}

func TestRunsAndHits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	run := &Run{
		Game:           "slots",
		ServerSeedHash: "hash1",
		ClientSeed:     "client1",
		NonceStart:     0,
		NonceEnd:       8999,
		TargetOp:       "ge",
		TargetVal:      10,
		HitCount:       5,
		TotalEvaluated: 1000,
		RTP:            0.93,
		EngineVersion:  "test",
	}
	hits := []Hit{{Nonce: 9, Metric: 10}, {Nonce: 90, Metric: 20}, {Nonce: 450, Metric: 12}, {Nonce: 900, Metric: 50}, {Nonce: 909, Metric: 10}}
	if err := db.SaveRun(ctx, run, hits); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.NonceEnd != 8999 || got.RTP != 0.93 || got.ParamsJSON != "{}" {
		t.Errorf("run = %+v", got)
	}

	list, err := db.ListRuns(ctx, 1, 10)
	if err != nil || list.TotalCount != 1 {
		t.Fatalf("ListRuns = %+v, %v", list, err)
	}

	page2, err := db.GetRunHits(ctx, run.ID, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.Hits) != 2 || page2.TotalPages != 3 {
		t.Fatalf("page 2 = %+v", page2)
	}
	// First hit on page 2 is nonce 450; the previous hit is 90.
	if d := page2.Hits[0].DeltaNonce; d == nil || *d != 360 {
		t.Errorf("cross-page delta = %v, want 360", d)
	}
	page1, _ := db.GetRunHits(ctx, run.ID, 1, 2)
	if page1.Hits[0].DeltaNonce != nil {
		t.Error("first hit must have no delta")
	}
}
