package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Journal persists committed receipts in height order.
type Journal interface {
	Head() (*Receipt, error)
	Append(r Receipt) error
}

// Publisher delivers committed receipts to off-chain consumers.
type Publisher interface {
	Publish(ctx context.Context, r Receipt) error
}

// Tx is the handle a mutating operation runs with. All reads and writes must go through DB.
type Tx struct {
	DB     *gorm.DB
	Sender string
	Now    int64
	events []Event
}

// Emit records an event; it is only kept if the transaction commits.
func (tx *Tx) Emit(name string, args map[string]any) {
	tx.events = append(tx.events, Event{Name: name, Args: args})
}

// Ledger serializes every mutating operation against the state database.
// Writes are totally ordered and atomic; reads see committed state only.
type Ledger struct {
	db        *gorm.DB
	journal   Journal
	publisher Publisher
	logger    *logrus.Logger
	clock     func() time.Time

	mu      sync.RWMutex
	head    Receipt
	backlog []Receipt
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for transaction timestamps.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

// WithPublisher sets the receipt publisher.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// New creates a ledger and resumes the receipt chain from the journal head.
func New(db *gorm.DB, journal Journal, logger *logrus.Logger, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		db:      db,
		journal: journal,
		logger:  logger,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	head, err := journal.Head()
	if err != nil {
		return nil, fmt.Errorf("load journal head: %w", err)
	}
	if head != nil {
		l.head = *head
	}
	l.logger.WithFields(logrus.Fields{
		"Function": "ledger.New",
		"Height":   l.head.Height,
	}).Info("Ledger initialized")
	return l, nil
}

// Head returns the latest committed receipt (zero value before the first transaction).
func (l *Ledger) Head() Receipt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head
}

// Submit runs fn as one atomic transaction on behalf of sender.
// If fn returns an error nothing is written and the error is returned unchanged.
func (l *Ledger) Submit(ctx context.Context, operation, sender string, fn func(tx *Tx) error) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	receipt, err := l.commit(ctx, operation, sender, fn)
	if err != nil {
		fields := logrus.Fields{"Operation": operation, "Sender": sender, "Error": err}
		if kind, ok := KindOf(err); ok {
			fields["Kind"] = kind.String()
			l.logger.WithFields(fields).Info("Transaction reverted")
		} else {
			l.logger.WithFields(fields).Error("Transaction failed")
		}
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"Operation": operation,
		"Sender":    sender,
		"Height":    receipt.Height,
		"TxHash":    receipt.TxHash,
	}).Info("Transaction committed")

	if l.publisher != nil {
		if err := l.publisher.Publish(context.WithoutCancel(ctx), receipt); err != nil {
			l.logger.WithFields(logrus.Fields{"TxHash": receipt.TxHash, "Error": err}).Warn("Failed to publish receipt")
		}
	}
	return &receipt, nil
}

// commit holds the write lock for the database transaction and the head update.
func (l *Ledger) commit(ctx context.Context, operation, sender string, fn func(tx *Tx) error) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock().UTC().Unix()
	tx := &Tx{Sender: sender, Now: now}
	err := l.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		tx.DB = gtx
		return fn(tx)
	})
	if err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{
		Height:    l.head.Height + 1,
		PrevHash:  l.head.TxHash,
		Operation: operation,
		Sender:    sender,
		Events:    tx.events,
		Timestamp: now,
	}
	if receipt.Events == nil {
		receipt.Events = []Event{}
	}
	receipt.TxHash, err = receipt.ComputeHash()
	if err != nil {
		// State is already committed; keep the chain moving with an unhashed receipt logged loudly.
		l.logger.WithFields(logrus.Fields{"Operation": operation, "Error": err}).Error("Failed to hash receipt")
	}
	l.head = receipt
	l.journalReceipt(receipt)
	return receipt, nil
}

// journalReceipt appends r after any receipts whose append failed earlier, oldest first,
// so the journal never skips a height. Must be called with mu held.
func (l *Ledger) journalReceipt(r Receipt) {
	l.backlog = append(l.backlog, r)
	for len(l.backlog) > 0 {
		next := l.backlog[0]
		if err := l.journal.Append(next); err != nil {
			l.logger.WithFields(logrus.Fields{
				"Height":  next.Height,
				"Backlog": len(l.backlog),
				"Error":   err,
			}).Error("Failed to append receipt to journal")
			return
		}
		l.backlog = l.backlog[1:]
	}
}

// Backlog reports how many committed receipts are waiting to be journaled.
func (l *Ledger) Backlog() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.backlog)
}

// View runs fn against a consistent snapshot of committed state.
func (l *Ledger) View(ctx context.Context, fn func(db *gorm.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(l.db.WithContext(ctx))
}
