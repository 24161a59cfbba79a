package jobs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marpelink-escrow-server/internal/escrow"
	"marpelink-escrow-server/internal/jobs"
	"marpelink-escrow-server/internal/ledger"
	"marpelink-escrow-server/internal/models"
	"marpelink-escrow-server/internal/testutil"
	"marpelink-escrow-server/internal/token"
)

type brokenCustody struct{}

func (brokenCustody) CustodySnapshot(context.Context) (int64, int64, error) {
	return 0, 0, errors.New("db gone")
}

func TestAuditBalancedAndDrifted(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	tok := token.New(env.Ledger, "HLUSD", 6, 1_000_000_000)
	contract := escrow.New(env.Ledger, tok, testutil.Escrow)
	auditor := jobs.NewAuditor(contract, env.Logger)

	_, err := contract.RegisterDoctor(ctx, testutil.Doctor, "Dr. Smith", "Cardiology")
	require.NoError(t, err)
	_, err = tok.Faucet(ctx, testutil.Patient)
	require.NoError(t, err)
	_, err = tok.Approve(ctx, testutil.Patient, testutil.Escrow, 500_000_000)
	require.NoError(t, err)
	_, _, err = contract.RequestConsultation(ctx, testutil.Patient, testutil.Doctor, 100_000_000)
	require.NoError(t, err)

	report, err := auditor.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Balanced)
	assert.Equal(t, int64(100_000_000), report.CustodyBalance)
	assert.Equal(t, int64(100_000_000), report.EscrowedTotal)

	// a stray transfer into custody breaks conservation
	_, err = tok.Transfer(ctx, testutil.Patient, testutil.Escrow, 1)
	require.NoError(t, err)
	report, err = auditor.Audit(ctx)
	require.NoError(t, err)
	assert.False(t, report.Balanced)

	// so does a consultation row without matching custody
	_, err = env.Ledger.Submit(ctx, "corrupt", testutil.Stranger, func(tx *ledger.Tx) error {
		return tx.DB.Create(&models.Consultation{Patient: testutil.Patient2, Doctor: testutil.Doctor, Amount: 5}).Error
	})
	require.NoError(t, err)
	var active int64
	require.NoError(t, env.Ledger.View(ctx, func(db *gorm.DB) error {
		return db.Model(&models.Consultation{}).Where("is_completed = ?", false).Count(&active).Error
	}))
	assert.Equal(t, int64(2), active)
	report, err = auditor.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_005), report.EscrowedTotal)
}

func TestAuditPropagatesReadErrors(t *testing.T) {
	auditor := jobs.NewAuditor(brokenCustody{}, testutil.Logger())
	_, err := auditor.Audit(context.Background())
	assert.ErrorContains(t, err, "db gone")
}

func TestStartSchedulerRejectsBadSpec(t *testing.T) {
	auditor := jobs.NewAuditor(brokenCustody{}, testutil.Logger())
	_, err := auditor.StartScheduler("every now and then")
	assert.Error(t, err)

	c, err := auditor.StartScheduler("@every 1h")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	c.Stop()
}
