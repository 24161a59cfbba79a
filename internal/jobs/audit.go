package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Custody is the escrow view the audit needs.
type Custody interface {
	CustodySnapshot(ctx context.Context) (balance, escrowed int64, err error)
}

// AuditReport is the outcome of one conservation check.
type AuditReport struct {
	CustodyBalance int64     `json:"custodyBalance"`
	EscrowedTotal  int64     `json:"escrowedTotal"`
	Balanced       bool      `json:"balanced"`
	CheckedAt      time.Time `json:"checkedAt"`
}

// Auditor verifies that the custody account holds exactly the funds of active consultations.
type Auditor struct {
	custody Custody
	logger  *logrus.Logger
}

// NewAuditor creates an Auditor.
func NewAuditor(custody Custody, logger *logrus.Logger) *Auditor {
	return &Auditor{custody: custody, logger: logger}
}

// Audit runs one check and logs the result.
func (a *Auditor) Audit(ctx context.Context) (AuditReport, error) {
	balance, escrowed, err := a.custody.CustodySnapshot(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("read custody snapshot: %w", err)
	}

	report := AuditReport{
		CustodyBalance: balance,
		EscrowedTotal:  escrowed,
		Balanced:       balance == escrowed,
		CheckedAt:      time.Now().UTC(),
	}
	fields := logrus.Fields{
		"Function":       "Audit",
		"CustodyBalance": balance,
		"EscrowedTotal":  escrowed,
	}
	if report.Balanced {
		a.logger.WithFields(fields).Info("Escrow conservation check passed")
	} else {
		a.logger.WithFields(fields).Error("Escrow conservation check FAILED")
	}
	return report, nil
}

// StartScheduler runs the audit on schedule (standard cron spec or "@every 5m").
// The caller stops the returned scheduler on shutdown.
func (a *Auditor) StartScheduler(schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := a.Audit(context.Background()); err != nil {
			a.logger.WithFields(logrus.Fields{"Function": "Audit", "Error": err}).Error("Escrow audit failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule audit %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
