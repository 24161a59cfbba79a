package models

import "time"

// Doctor is a registry entry keyed by the doctor's wallet address.
// Ratings are cumulative; AverageRating is scaled by 100 ("4.25" stars is 425).
type Doctor struct {
	Address       string    `gorm:"primaryKey;size:42" json:"address"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Specialty     string    `gorm:"size:255;not null;index" json:"specialty"`
	IsRegistered  bool      `gorm:"default:false" json:"isRegistered"`
	TotalRatings  int64     `gorm:"default:0" json:"totalRatings"`
	RatingSum     int64     `gorm:"default:0" json:"ratingSum"`
	AverageRating int64     `gorm:"default:0" json:"averageRating"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
