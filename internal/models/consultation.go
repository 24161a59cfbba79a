package models

// Consultation is an escrowed request from a patient to a registered doctor.
// Amount is in token base units; Timestamp is unix seconds at commit.
type Consultation struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Patient     string `gorm:"size:42;not null;index" json:"patient"`
	Doctor      string `gorm:"size:42;not null;index" json:"doctor"`
	Amount      int64  `gorm:"not null" json:"amount"`
	IsCompleted bool   `gorm:"default:false" json:"isCompleted"`
	IsCancelled bool   `gorm:"default:false" json:"isCancelled"`
	IsRated     bool   `gorm:"default:false" json:"isRated"`
	Timestamp   int64  `gorm:"not null" json:"timestamp"`
}
