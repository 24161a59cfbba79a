package escrow

import (
	"context"

	"gorm.io/gorm"

	"marpelink-escrow-server/internal/ledger"
	"marpelink-escrow-server/internal/models"
)

// ConsultationDetails is the public view of a consultation.
type ConsultationDetails struct {
	ID          uint64 `json:"id"`
	Patient     string `json:"patient"`
	Doctor      string `json:"doctor"`
	Amount      int64  `json:"amount"`
	IsCompleted bool   `json:"isCompleted"`
	IsCancelled bool   `json:"isCancelled"`
	IsRated     bool   `json:"isRated"`
	Timestamp   int64  `json:"timestamp"`
}

func toDetails(m models.Consultation) ConsultationDetails {
	return ConsultationDetails{
		ID:          m.ID,
		Patient:     m.Patient,
		Doctor:      m.Doctor,
		Amount:      m.Amount,
		IsCompleted: m.IsCompleted,
		IsCancelled: m.IsCancelled,
		IsRated:     m.IsRated,
		Timestamp:   m.Timestamp,
	}
}

// RequestConsultation escrows amount from the caller for a consultation with doctor.
// The caller must have approved the contract address for at least amount beforehand.
func (c *Contract) RequestConsultation(ctx context.Context, caller, doctor string, amount int64) (*ledger.Receipt, uint64, error) {
	var id uint64
	receipt, err := c.ledger.Submit(ctx, "requestConsultation", caller, func(tx *ledger.Tx) error {
		d, exists, err := findDoctor(tx.DB, doctor)
		if err != nil {
			return err
		}
		if !exists || !d.IsRegistered {
			return ErrDoctorNotRegistered
		}
		if amount <= 0 {
			return ErrZeroAmount
		}
		if caller == doctor {
			return ErrSelfConsultation
		}

		if err := c.token.In(tx).TransferFrom(c.Address, caller, c.Address, amount); err != nil {
			return err
		}

		consultation := models.Consultation{
			Patient:   caller,
			Doctor:    doctor,
			Amount:    amount,
			Timestamp: tx.Now,
		}
		if err := tx.DB.Create(&consultation).Error; err != nil {
			return err
		}
		id = consultation.ID
		tx.Emit(EventConsultationRequested, map[string]any{
			"consultationId": id,
			"patient":        caller,
			"doctor":         doctor,
			"amount":         amount,
		})
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return receipt, id, nil
}

// CompleteConsultation releases the escrowed amount to the doctor. Only the patient may complete.
func (c *Contract) CompleteConsultation(ctx context.Context, caller string, id uint64) (*ledger.Receipt, error) {
	return c.ledger.Submit(ctx, "completeConsultation", caller, func(tx *ledger.Tx) error {
		consultation, err := findConsultation(tx.DB, id)
		if err != nil {
			return err
		}
		if consultation.Patient != caller {
			return ErrOnlyPatient
		}
		if consultation.IsCompleted {
			return ErrAlreadyCompleted
		}
		if consultation.IsCancelled {
			return ErrAlreadyCancelled
		}

		// terminal flag before the custody transfer
		if err := tx.DB.Model(&consultation).Update("is_completed", true).Error; err != nil {
			return err
		}
		if err := c.token.In(tx).Transfer(c.Address, consultation.Doctor, consultation.Amount); err != nil {
			return err
		}
		tx.Emit(EventConsultationCompleted, map[string]any{
			"consultationId": id,
			"patient":        consultation.Patient,
			"doctor":         consultation.Doctor,
		})
		return nil
	})
}

// CancelConsultation refunds the escrowed amount to the patient. Patient or doctor may cancel.
func (c *Contract) CancelConsultation(ctx context.Context, caller string, id uint64) (*ledger.Receipt, error) {
	return c.ledger.Submit(ctx, "cancelConsultation", caller, func(tx *ledger.Tx) error {
		consultation, err := findConsultation(tx.DB, id)
		if err != nil {
			return err
		}
		if consultation.Patient != caller && consultation.Doctor != caller {
			return ErrOnlyParticipant
		}
		if consultation.IsCompleted {
			return ErrAlreadyCompleted
		}
		if consultation.IsCancelled {
			return ErrAlreadyCancelled
		}

		if err := tx.DB.Model(&consultation).Update("is_cancelled", true).Error; err != nil {
			return err
		}
		if err := c.token.In(tx).Transfer(c.Address, consultation.Patient, consultation.Amount); err != nil {
			return err
		}
		tx.Emit(EventConsultationCancelled, map[string]any{
			"consultationId": id,
			"patient":        consultation.Patient,
			"doctor":         consultation.Doctor,
		})
		return nil
	})
}

// GetConsultationDetails returns the consultation with id.
func (c *Contract) GetConsultationDetails(ctx context.Context, id uint64) (ConsultationDetails, error) {
	var details ConsultationDetails
	err := c.ledger.View(ctx, func(db *gorm.DB) error {
		m, err := findConsultation(db, id)
		if err != nil {
			return err
		}
		details = toDetails(m)
		return nil
	})
	return details, err
}

func (c *Contract) consultationIDs(ctx context.Context, column, address string) ([]uint64, error) {
	ids := []uint64{}
	err := c.ledger.View(ctx, func(db *gorm.DB) error {
		return db.Model(&models.Consultation{}).
			Where(column+" = ?", address).
			Order("id asc").
			Pluck("id", &ids).Error
	})
	return ids, err
}

// GetPatientConsultations lists the ids requested by address, in creation order.
func (c *Contract) GetPatientConsultations(ctx context.Context, address string) ([]uint64, error) {
	return c.consultationIDs(ctx, "patient", address)
}

// GetDoctorConsultations lists the ids assigned to address, in creation order.
func (c *Contract) GetDoctorConsultations(ctx context.Context, address string) ([]uint64, error) {
	return c.consultationIDs(ctx, "doctor", address)
}

// GetContractBalance returns the tokens held in custody.
func (c *Contract) GetContractBalance(ctx context.Context) (int64, error) {
	return c.token.BalanceOf(ctx, c.Address)
}

func escrowedTotal(db *gorm.DB) (int64, error) {
	var total int64
	err := db.Model(&models.Consultation{}).
		Where("is_completed = ? AND is_cancelled = ?", false, false).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// CustodySnapshot reads the custody balance and the escrowed total from the same snapshot.
func (c *Contract) CustodySnapshot(ctx context.Context) (balance, escrowed int64, err error) {
	err = c.ledger.View(ctx, func(db *gorm.DB) error {
		var err error
		if balance, err = c.token.BalanceIn(db, c.Address); err != nil {
			return err
		}
		escrowed, err = escrowedTotal(db)
		return err
	})
	return balance, escrowed, err
}
