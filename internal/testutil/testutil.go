// Package testutil builds ledgers backed by throwaway sqlite and LevelDB stores.
package testutil

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marpelink-escrow-server/internal/journal"
	"marpelink-escrow-server/internal/ledger"
	"marpelink-escrow-server/internal/models"
)

// Well-known test addresses.
const (
	Escrow   = "0x000000000000000000000000000000000000e5c0"
	Doctor   = "0xd0c7000000000000000000000000000000000001"
	Doctor2  = "0xd0c7000000000000000000000000000000000002"
	Patient  = "0xba7100000000000000000000000000000000000a"
	Patient2 = "0xba7100000000000000000000000000000000000b"
	Stranger = "0x5714000000000000000000000000000000000099"
)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Recorder is a ledger.Publisher that keeps every receipt.
type Recorder struct {
	mu       sync.Mutex
	Receipts []ledger.Receipt
}

// Publish implements ledger.Publisher.
func (r *Recorder) Publish(_ context.Context, receipt ledger.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Receipts = append(r.Receipts, receipt)
	return nil
}

// Env bundles the stores behind a test ledger.
type Env struct {
	DB        *gorm.DB
	Journal   *journal.Journal
	Ledger    *ledger.Ledger
	Clock     *Clock
	Published *Recorder
	Logger    *logrus.Logger
}

// Logger returns a logger that writes nowhere.
func Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// NewEnv opens a fresh database and journal under t.TempDir().
func NewEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()

	db, err := models.InitDB(models.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "ledger.db"),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	j, err := journal.Open(filepath.Join(dir, "journal"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	env := &Env{DB: db, Journal: j, Clock: NewClock(), Published: &Recorder{}, Logger: Logger()}
	env.Ledger, err = ledger.New(db, j, env.Logger,
		ledger.WithClock(env.Clock.Now),
		ledger.WithPublisher(env.Published),
	)
	require.NoError(t, err)
	return env
}
