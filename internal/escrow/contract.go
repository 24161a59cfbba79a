// Package escrow implements the HealthLink consultation escrow: a doctor registry,
// consultations whose fee is held in custody until the patient completes or either
// party cancels, and per-consultation doctor ratings.
//
// Every mutating call runs as a single ledger transaction, so a failed precondition
// leaves no trace and calls are totally ordered.
package escrow

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"marpelink-escrow-server/internal/ledger"
	"marpelink-escrow-server/internal/models"
	"marpelink-escrow-server/internal/token"
)

// Event names
const (
	EventDoctorRegistered      = "DoctorRegistered"
	EventConsultationRequested = "ConsultationRequested"
	EventConsultationCompleted = "ConsultationCompleted"
	EventConsultationCancelled = "ConsultationCancelled"
	EventDoctorRated           = "DoctorRated"
)

// RatingScale is the fixed-point factor applied to average ratings.
const RatingScale = 100

var (
	ErrEmptyName             = ledger.Revert(ledger.KindValidation, "Name cannot be empty")
	ErrEmptySpecialty        = ledger.Revert(ledger.KindValidation, "Specialty cannot be empty")
	ErrAlreadyRegistered     = ledger.Revert(ledger.KindConflict, "Doctor already registered")
	ErrDoctorNotRegistered   = ledger.Revert(ledger.KindValidation, "Doctor is not registered")
	ErrZeroAmount            = ledger.Revert(ledger.KindValidation, "Amount must be greater than zero")
	ErrSelfConsultation      = ledger.Revert(ledger.KindValidation, "Patient cannot be the same as doctor")
	ErrConsultationNotFound  = ledger.Revert(ledger.KindNotFound, "Consultation does not exist")
	ErrOnlyPatient           = ledger.Revert(ledger.KindAuthorization, "Only the patient can perform this action")
	ErrOnlyParticipant       = ledger.Revert(ledger.KindAuthorization, "Only patient or doctor can cancel consultation")
	ErrAlreadyCompleted      = ledger.Revert(ledger.KindConflict, "Consultation already completed")
	ErrAlreadyCancelled      = ledger.Revert(ledger.KindConflict, "Consultation already cancelled")
	ErrRatingOutOfRange      = ledger.Revert(ledger.KindValidation, "Rating must be between 1 and 5")
	ErrNotCompletedForRating = ledger.Revert(ledger.KindConflict, "Consultation must be completed before rating")
	ErrAlreadyRated          = ledger.Revert(ledger.KindConflict, "Consultation already rated")
)

// DoctorInfo is the public view of a registry entry.
type DoctorInfo struct {
	Address       string `json:"address"`
	Name          string `json:"name"`
	Specialty     string `json:"specialty"`
	IsRegistered  bool   `json:"isRegistered"`
	TotalRatings  int64  `json:"totalRatings"`
	RatingSum     int64  `json:"ratingSum"`
	AverageRating int64  `json:"averageRating"`
}

// Contract is the escrow. Address is the custody account holding escrowed tokens.
type Contract struct {
	ledger  *ledger.Ledger
	token   *token.Token
	Address string
}

// New creates the escrow contract with custody account address and reserves that
// account on tok so only the contract moves its funds.
func New(l *ledger.Ledger, tok *token.Token, address string) *Contract {
	tok.Reserve(address)
	return &Contract{ledger: l, token: tok, Address: address}
}

func toInfo(address string, d models.Doctor) DoctorInfo {
	return DoctorInfo{
		Address:       address,
		Name:          d.Name,
		Specialty:     d.Specialty,
		IsRegistered:  d.IsRegistered,
		TotalRatings:  d.TotalRatings,
		RatingSum:     d.RatingSum,
		AverageRating: d.AverageRating,
	}
}

// averageRating is round-half-up(sum*scale/count).
func averageRating(sum, count int64) int64 {
	if count == 0 {
		return 0
	}
	return (sum*RatingScale + count/2) / count
}

func findDoctor(db *gorm.DB, address string) (models.Doctor, bool, error) {
	var d models.Doctor
	err := db.Where("address = ?", address).Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Doctor{}, false, nil
	}
	if err != nil {
		return models.Doctor{}, false, err
	}
	return d, true, nil
}

func findConsultation(db *gorm.DB, id uint64) (models.Consultation, error) {
	var c models.Consultation
	err := db.Where("id = ?", id).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c, ErrConsultationNotFound
	}
	return c, err
}

// RegisterDoctor registers the caller as a doctor. Registration is permanent.
func (c *Contract) RegisterDoctor(ctx context.Context, caller, name, specialty string) (*ledger.Receipt, error) {
	return c.ledger.Submit(ctx, "registerDoctor", caller, func(tx *ledger.Tx) error {
		if strings.TrimSpace(name) == "" {
			return ErrEmptyName
		}
		if strings.TrimSpace(specialty) == "" {
			return ErrEmptySpecialty
		}
		_, exists, err := findDoctor(tx.DB, caller)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyRegistered
		}

		doctor := models.Doctor{
			Address:      caller,
			Name:         name,
			Specialty:    specialty,
			IsRegistered: true,
		}
		if err := tx.DB.Create(&doctor).Error; err != nil {
			return err
		}
		tx.Emit(EventDoctorRegistered, map[string]any{
			"doctor":    caller,
			"name":      name,
			"specialty": specialty,
		})
		return nil
	})
}

// GetDoctorInfo returns the registry entry for address, or a zero entry if unregistered.
func (c *Contract) GetDoctorInfo(ctx context.Context, address string) (DoctorInfo, error) {
	var info DoctorInfo
	err := c.ledger.View(ctx, func(db *gorm.DB) error {
		d, _, err := findDoctor(db, address)
		info = toInfo(address, d)
		return err
	})
	return info, err
}

// ListDoctors returns registered doctors ordered by name, optionally filtered by specialty.
func (c *Contract) ListDoctors(ctx context.Context, specialty string) ([]DoctorInfo, error) {
	var doctors []models.Doctor
	err := c.ledger.View(ctx, func(db *gorm.DB) error {
		q := db.Where("is_registered = ?", true)
		if specialty != "" {
			q = q.Where("LOWER(specialty) = ?", strings.ToLower(specialty))
		}
		return q.Order("name asc").Order("address asc").Find(&doctors).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]DoctorInfo, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, toInfo(d.Address, d))
	}
	return out, nil
}
