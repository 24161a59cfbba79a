package escrow

import (
	"context"

	"marpelink-escrow-server/internal/ledger"
	"marpelink-escrow-server/internal/models"
)

// RateDoctor records a 1-5 rating for the doctor of a completed consultation.
// Each consultation can be rated once, by its patient.
func (c *Contract) RateDoctor(ctx context.Context, caller string, id uint64, rating int) (*ledger.Receipt, error) {
	return c.ledger.Submit(ctx, "rateDoctor", caller, func(tx *ledger.Tx) error {
		if rating < 1 || rating > 5 {
			return ErrRatingOutOfRange
		}
		consultation, err := findConsultation(tx.DB, id)
		if err != nil {
			return err
		}
		if consultation.Patient != caller {
			return ErrOnlyPatient
		}
		if !consultation.IsCompleted {
			return ErrNotCompletedForRating
		}
		if consultation.IsRated {
			return ErrAlreadyRated
		}

		doctor, _, err := findDoctor(tx.DB, consultation.Doctor)
		if err != nil {
			return err
		}
		total := doctor.TotalRatings + 1
		sum := doctor.RatingSum + int64(rating)
		average := averageRating(sum, total)

		err = tx.DB.Model(&models.Doctor{}).
			Where("address = ?", consultation.Doctor).
			Updates(map[string]any{
				"total_ratings":  total,
				"rating_sum":     sum,
				"average_rating": average,
			}).Error
		if err != nil {
			return err
		}
		if err := tx.DB.Model(&consultation).Update("is_rated", true).Error; err != nil {
			return err
		}

		tx.Emit(EventDoctorRated, map[string]any{
			"doctor":        consultation.Doctor,
			"rating":        rating,
			"averageRating": average,
		})
		return nil
	})
}
