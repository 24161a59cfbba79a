// Package token implements the HLUSD mock stablecoin: balances, allowances and supply
// held in the ledger database, with ERC20-style transfer semantics and revert reasons.
package token

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marpelink-escrow-server/internal/ledger"
	"marpelink-escrow-server/internal/models"
)

// ZeroAddress is the mint source and an invalid transfer target.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Event names
const (
	EventTransfer = "Transfer"
	EventApproval = "Approval"
)

var (
	ErrInsufficientBalance   = ledger.Revert(ledger.KindResource, "ERC20: transfer amount exceeds balance")
	ErrInsufficientAllowance = ledger.Revert(ledger.KindResource, "ERC20: insufficient allowance")
	ErrInvalidSender         = ledger.Revert(ledger.KindValidation, "ERC20: invalid sender")
	ErrInvalidReceiver       = ledger.Revert(ledger.KindValidation, "ERC20: invalid receiver")
	ErrInvalidApprover       = ledger.Revert(ledger.KindValidation, "ERC20: invalid approver")
	ErrInvalidSpender        = ledger.Revert(ledger.KindValidation, "ERC20: invalid spender")
	ErrNegativeAmount        = ledger.Revert(ledger.KindValidation, "ERC20: amount must not be negative")
	ErrSupplyOverflow        = ledger.Revert(ledger.KindValidation, "ERC20: supply overflow")
	ErrCustodyAccount        = ledger.Revert(ledger.KindAuthorization, "ERC20: custody account is controlled by its contract")
)

// Token is a stablecoin whose state lives in the ledger.
type Token struct {
	ledger       *ledger.Ledger
	Symbol       string
	Decimals     int
	FaucetAmount int64

	custody map[string]bool
}

// New creates a token bound to l. faucetAmount is in base units.
func New(l *ledger.Ledger, symbol string, decimals int, faucetAmount int64) *Token {
	return &Token{
		ledger:       l,
		Symbol:       symbol,
		Decimals:     decimals,
		FaucetAmount: faucetAmount,
		custody:      map[string]bool{},
	}
}

// Reserve marks address as a contract custody account. Its funds can then only move
// through Ops inside the owning contract's transactions, never through Transfer or Approve.
// Call it during setup, before the token is shared.
func (t *Token) Reserve(address string) {
	t.custody[address] = true
}

// IsCustody reports whether address was reserved by a contract.
func (t *Token) IsCustody(address string) bool {
	return t.custody[address]
}

// Ops are token operations scoped to one ledger transaction.
type Ops struct {
	tx     *ledger.Tx
	symbol string
}

// In binds token operations to tx so they commit or revert with it.
func (t *Token) In(tx *ledger.Tx) *Ops {
	return &Ops{tx: tx, symbol: t.Symbol}
}

func isZero(addr string) bool {
	return addr == "" || addr == ZeroAddress
}

func balanceOf(db *gorm.DB, symbol, holder string) (int64, error) {
	var b models.TokenBalance
	err := db.Where("symbol = ? AND holder = ?", symbol, holder).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return b.Balance, err
}

func allowance(db *gorm.DB, symbol, owner, spender string) (int64, error) {
	var a models.TokenAllowance
	err := db.Where("symbol = ? AND owner = ? AND spender = ?", symbol, owner, spender).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return a.Amount, err
}

func totalSupply(db *gorm.DB, symbol string) (int64, error) {
	var s models.TokenSupply
	err := db.Where("symbol = ?", symbol).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return s.Total, err
}

func (o *Ops) setBalance(holder string, balance int64) error {
	return o.tx.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "holder"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance"}),
	}).Create(&models.TokenBalance{Symbol: o.symbol, Holder: holder, Balance: balance}).Error
}

func (o *Ops) setAllowance(owner, spender string, amount int64) error {
	return o.tx.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "owner"}, {Name: "spender"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount"}),
	}).Create(&models.TokenAllowance{Symbol: o.symbol, Owner: owner, Spender: spender, Amount: amount}).Error
}

// BalanceOf returns holder's balance as seen inside the transaction.
func (o *Ops) BalanceOf(holder string) (int64, error) {
	return balanceOf(o.tx.DB, o.symbol, holder)
}

// Allowance returns how much spender may still pull from owner.
func (o *Ops) Allowance(owner, spender string) (int64, error) {
	return allowance(o.tx.DB, o.symbol, owner, spender)
}

// Transfer moves amount from one holder to another.
func (o *Ops) Transfer(from, to string, amount int64) error {
	if isZero(from) {
		return ErrInvalidSender
	}
	if isZero(to) {
		return ErrInvalidReceiver
	}
	if amount < 0 {
		return ErrNegativeAmount
	}

	fromBalance, err := o.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return ErrInsufficientBalance
	}
	if err := o.setBalance(from, fromBalance-amount); err != nil {
		return err
	}
	toBalance, err := o.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := o.setBalance(to, toBalance+amount); err != nil {
		return err
	}

	o.tx.Emit(EventTransfer, map[string]any{"from": from, "to": to, "value": amount})
	return nil
}

// Approve sets spender's allowance over owner's balance, replacing any previous value.
func (o *Ops) Approve(owner, spender string, amount int64) error {
	if isZero(owner) {
		return ErrInvalidApprover
	}
	if isZero(spender) {
		return ErrInvalidSpender
	}
	if amount < 0 {
		return ErrNegativeAmount
	}
	if err := o.setAllowance(owner, spender, amount); err != nil {
		return err
	}
	o.tx.Emit(EventApproval, map[string]any{"owner": owner, "spender": spender, "value": amount})
	return nil
}

// TransferFrom lets spender move amount out of from's balance, consuming allowance.
func (o *Ops) TransferFrom(spender, from, to string, amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	current, err := o.Allowance(from, spender)
	if err != nil {
		return err
	}
	if current < amount {
		return ErrInsufficientAllowance
	}
	if err := o.setAllowance(from, spender, current-amount); err != nil {
		return err
	}
	return o.Transfer(from, to, amount)
}

// Mint creates amount new tokens for to.
func (o *Ops) Mint(to string, amount int64) error {
	if isZero(to) {
		return ErrInvalidReceiver
	}
	if amount < 0 {
		return ErrNegativeAmount
	}
	supply, err := totalSupply(o.tx.DB, o.symbol)
	if err != nil {
		return err
	}
	if supply > math.MaxInt64-amount {
		return ErrSupplyOverflow
	}
	err = o.tx.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"total"}),
	}).Create(&models.TokenSupply{Symbol: o.symbol, Total: supply + amount}).Error
	if err != nil {
		return err
	}

	balance, err := o.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := o.setBalance(to, balance+amount); err != nil {
		return err
	}
	o.tx.Emit(EventTransfer, map[string]any{"from": ZeroAddress, "to": to, "value": amount})
	return nil
}

// Transfer submits a transfer from the caller.
func (t *Token) Transfer(ctx context.Context, from, to string, amount int64) (*ledger.Receipt, error) {
	return t.ledger.Submit(ctx, "transfer", from, func(tx *ledger.Tx) error {
		if t.IsCustody(from) {
			return ErrCustodyAccount
		}
		return t.In(tx).Transfer(from, to, amount)
	})
}

// Approve submits an allowance change from the caller.
func (t *Token) Approve(ctx context.Context, owner, spender string, amount int64) (*ledger.Receipt, error) {
	return t.ledger.Submit(ctx, "approve", owner, func(tx *ledger.Tx) error {
		if t.IsCustody(owner) {
			return ErrCustodyAccount
		}
		return t.In(tx).Approve(owner, spender, amount)
	})
}

// Mint submits a mint. Callers gate who may mint.
func (t *Token) Mint(ctx context.Context, sender, to string, amount int64) (*ledger.Receipt, error) {
	return t.ledger.Submit(ctx, "mint", sender, func(tx *ledger.Tx) error {
		return t.In(tx).Mint(to, amount)
	})
}

// Faucet mints the configured faucet amount to the caller.
func (t *Token) Faucet(ctx context.Context, to string) (*ledger.Receipt, error) {
	return t.ledger.Submit(ctx, "faucet", to, func(tx *ledger.Tx) error {
		return t.In(tx).Mint(to, t.FaucetAmount)
	})
}

// BalanceOf reads a committed balance.
func (t *Token) BalanceOf(ctx context.Context, holder string) (int64, error) {
	var balance int64
	err := t.ledger.View(ctx, func(db *gorm.DB) error {
		var err error
		balance, err = balanceOf(db, t.Symbol, holder)
		return err
	})
	return balance, err
}

// Allowance reads a committed allowance.
func (t *Token) Allowance(ctx context.Context, owner, spender string) (int64, error) {
	var amount int64
	err := t.ledger.View(ctx, func(db *gorm.DB) error {
		var err error
		amount, err = allowance(db, t.Symbol, owner, spender)
		return err
	})
	return amount, err
}

// TotalSupply reads the committed supply.
func (t *Token) TotalSupply(ctx context.Context) (int64, error) {
	var supply int64
	err := t.ledger.View(ctx, func(db *gorm.DB) error {
		var err error
		supply, err = totalSupply(db, t.Symbol)
		return err
	})
	return supply, err
}

// BalanceIn reads a balance with an existing read handle, for callers already inside View.
func (t *Token) BalanceIn(db *gorm.DB, holder string) (int64, error) {
	return balanceOf(db, t.Symbol, holder)
}
