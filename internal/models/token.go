package models

// TokenBalance is the stablecoin balance of one holder.
type TokenBalance struct {
	Symbol  string `gorm:"primaryKey;size:16" json:"symbol"`
	Holder  string `gorm:"primaryKey;size:42" json:"holder"`
	Balance int64  `gorm:"not null;default:0" json:"balance"`
}

// TokenAllowance is the amount Spender may pull from Owner.
type TokenAllowance struct {
	Symbol  string `gorm:"primaryKey;size:16" json:"symbol"`
	Owner   string `gorm:"primaryKey;size:42" json:"owner"`
	Spender string `gorm:"primaryKey;size:42" json:"spender"`
	Amount  int64  `gorm:"not null;default:0" json:"amount"`
}

// TokenSupply tracks minted supply per token symbol.
type TokenSupply struct {
	Symbol string `gorm:"primaryKey;size:16" json:"symbol"`
	Total  int64  `gorm:"not null;default:0" json:"total"`
}
