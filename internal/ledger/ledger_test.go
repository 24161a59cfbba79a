package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marpelink-escrow-server/internal/ledger"
	"marpelink-escrow-server/internal/models"
	"marpelink-escrow-server/internal/testutil"
)

func countDoctors(t *testing.T, env *testutil.Env) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.Ledger.View(context.Background(), func(db *gorm.DB) error {
		return db.Model(&models.Doctor{}).Count(&n).Error
	}))
	return n
}

func TestSubmitCommitsAndChainsReceipts(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	r1, err := env.Ledger.Submit(ctx, "registerDoctor", testutil.Doctor, func(tx *ledger.Tx) error {
		tx.Emit("DoctorRegistered", map[string]any{"doctor": testutil.Doctor})
		return tx.DB.Create(&models.Doctor{Address: testutil.Doctor, Name: "A", Specialty: "B", IsRegistered: true}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r1.Height)
	assert.Empty(t, r1.PrevHash)
	assert.Equal(t, env.Clock.Now().Unix(), r1.Timestamp)

	hash, err := r1.ComputeHash()
	require.NoError(t, err)
	assert.Equal(t, hash, r1.TxHash)

	env.Clock.Advance(time.Second)
	r2, err := env.Ledger.Submit(ctx, "noop", testutil.Patient, func(tx *ledger.Tx) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r2.Height)
	assert.Equal(t, r1.TxHash, r2.PrevHash)
	assert.NotNil(t, r2.Events)

	assert.Equal(t, int64(1), countDoctors(t, env))
	assert.Equal(t, r2.TxHash, env.Ledger.Head().TxHash)
	require.Len(t, env.Published.Receipts, 2)
	assert.Equal(t, r1.TxHash, env.Published.Receipts[0].TxHash)

	head, err := env.Journal.Head()
	require.NoError(t, err)
	assert.Equal(t, r2.TxHash, head.TxHash)
}

func TestSubmitRevertLeavesNoTrace(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	revert := ledger.Revert(ledger.KindConflict, "Doctor already registered")

	r, err := env.Ledger.Submit(ctx, "registerDoctor", testutil.Doctor, func(tx *ledger.Tx) error {
		tx.Emit("DoctorRegistered", nil)
		if err := tx.DB.Create(&models.Doctor{Address: testutil.Doctor, Name: "A", Specialty: "B"}).Error; err != nil {
			return err
		}
		return revert
	})
	assert.Nil(t, r)
	assert.ErrorIs(t, err, revert)
	assert.Zero(t, countDoctors(t, env))
	assert.Zero(t, env.Ledger.Head().Height)
	assert.Empty(t, env.Published.Receipts)
}

func TestSubmitHonoursCancelledContext(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := env.Ledger.Submit(ctx, "noop", testutil.Patient, func(tx *ledger.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestSubmitSerializesConcurrentWriters(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Ledger.Submit(ctx, "noop", testutil.Patient, func(tx *ledger.Tx) error { return nil })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(20), env.Ledger.Head().Height)
	rs, err := env.Journal.Since(0, 0)
	require.NoError(t, err)
	require.Len(t, rs, 20)
	for i := 1; i < len(rs); i++ {
		assert.Equal(t, rs[i-1].TxHash, rs[i].PrevHash)
	}
}

func TestNewResumesFromJournal(t *testing.T) {
	env := testutil.NewEnv(t)
	r, err := env.Ledger.Submit(context.Background(), "noop", testutil.Patient, func(tx *ledger.Tx) error { return nil })
	require.NoError(t, err)

	resumed, err := ledger.New(env.DB, env.Journal, env.Logger)
	require.NoError(t, err)
	assert.Equal(t, r.TxHash, resumed.Head().TxHash)
}

func TestKindOf(t *testing.T) {
	err := ledger.Revert(ledger.KindResource, "ERC20: insufficient allowance")
	wrapped := errors.Join(errors.New("context"), err)

	kind, ok := ledger.KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ledger.KindResource, kind)
	assert.Equal(t, "resource", kind.String())

	_, ok = ledger.KindOf(errors.New("plain"))
	assert.False(t, ok)
}

// flakyJournal fails the next failures appends, then delegates.
type flakyJournal struct {
	ledger.Journal
	failures int
}

func (f *flakyJournal) Append(r ledger.Receipt) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("disk full")
	}
	return f.Journal.Append(r)
}

func TestJournalCatchesUpAfterFailedAppends(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	flaky := &flakyJournal{Journal: env.Journal}
	l, err := ledger.New(env.DB, flaky, env.Logger)
	require.NoError(t, err)

	noop := func(tx *ledger.Tx) error { return nil }
	_, err = l.Submit(ctx, "noop", testutil.Patient, noop)
	require.NoError(t, err)

	flaky.failures = 2
	for i := 0; i < 2; i++ {
		_, err = l.Submit(ctx, "noop", testutil.Patient, noop)
		require.NoError(t, err, "journal failures never fail a committed transaction")
	}
	assert.Equal(t, 2, l.Backlog())
	head, err := env.Journal.Head()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head.Height)

	last, err := l.Submit(ctx, "noop", testutil.Patient, noop)
	require.NoError(t, err)
	assert.Zero(t, l.Backlog())

	rs, err := env.Journal.Since(0, 0)
	require.NoError(t, err)
	require.Len(t, rs, 4)
	for i, r := range rs {
		assert.Equal(t, uint64(i+1), r.Height)
		if i > 0 {
			assert.Equal(t, rs[i-1].TxHash, r.PrevHash)
		}
	}
	assert.Equal(t, last.TxHash, rs[3].TxHash)
}

func TestSubmitReleasesLockWhenOperationPanics(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_, _ = env.Ledger.Submit(ctx, "registerDoctor", testutil.Doctor, func(tx *ledger.Tx) error {
			if err := tx.DB.Create(&models.Doctor{Address: testutil.Doctor, Name: "A", Specialty: "B"}).Error; err != nil {
				return err
			}
			panic("handler bug")
		})
	})

	done := make(chan error, 1)
	go func() {
		_, err := env.Ledger.Submit(ctx, "noop", testutil.Patient, func(tx *ledger.Tx) error { return nil })
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("write lock still held after a panicking operation")
	}
	assert.Equal(t, uint64(1), env.Ledger.Head().Height)
	assert.Zero(t, countDoctors(t, env))
}
