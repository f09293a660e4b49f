package health

import (
	"context"
	"testing"
	"time"

	"github.com/puzzlepup/puzzlepup/internal/domain"
	"github.com/puzzlepup/puzzlepup/internal/infra/sqlite"
)

func newTestDB(t *testing.T) (*sqlite.DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dir
}

func TestChecker_RunAllHealthy(t *testing.T) {
	db, dir := newTestDB(t)

	c := NewChecker(db, dir)
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true with all checks passing")
	}
}

func TestChecker_NegativeBalanceDetected(t *testing.T) {
	db, dir := newTestDB(t)

	err := db.CreateUser(domain.User{
		ID:        "u1",
		Username:  "dogmom",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.AddCurrency(db.Q(), "u1", domain.RewardHints, -5); err != nil {
		t.Fatalf("drain: %v", err)
	}

	c := NewChecker(db, dir)
	c.runAll(context.Background())

	if c.IsHealthy() {
		t.Error("a negative balance should fail the integrity check")
	}
	for _, s := range c.Statuses() {
		if s.Name == "balance_integrity" && s.Healthy {
			t.Error("balance_integrity should report unhealthy")
		}
	}
}

func TestChecker_MissingDataDir(t *testing.T) {
	db, _ := newTestDB(t)

	c := NewChecker(db, "/nonexistent/puzzlepup-data")
	c.runAll(context.Background())

	if c.IsHealthy() {
		t.Error("a missing data dir should fail the check")
	}
}
