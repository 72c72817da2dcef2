package repository

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mescobar996/testcraft-ai-sub000/models"
)

// TrialRepository defines the interface for the one-trial-per-user ledger.
type TrialRepository interface {
	// Get returns the trial record for a user. A missing row reads as a
	// fresh, unused record rather than an error.
	Get(userID string) (*models.TrialRecord, error)
	// MarkUsed activates the trial for a user. Returns false when the
	// ledger already shows a consumed trial — regardless of whether that
	// trial is still time-active or long expired.
	MarkUsed(userID string, startedAt time.Time) (bool, error)
	// Reset clears a user's trial record. Administrative operation only,
	// never reachable from end-user surfaces.
	Reset(userID string) error
}

type trialRepository struct {
	db *gorm.DB
}

// NewTrialRepository creates a new instance of TrialRepository.
func NewTrialRepository(db *gorm.DB) TrialRepository {
	return &trialRepository{db: db}
}

func (r *trialRepository) Get(userID string) (*models.TrialRecord, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	var record models.TrialRecord
	err := r.db.First(&record, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.TrialRecord{UserID: userID}, nil
		}
		log.Printf("ERROR: [TrialRepository] Failed to fetch trial record for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to fetch trial record for user %s: %w", userID, err)
	}
	return &record, nil
}

// MarkUsed inserts the trial row with DoNothing on conflict, so two
// concurrent activations cannot both succeed: the loser sees zero rows
// affected and reports ineligibility.
func (r *trialRepository) MarkUsed(userID string, startedAt time.Time) (bool, error) {
	if userID == "" {
		return false, errors.New("user ID cannot be empty")
	}

	record := models.TrialRecord{
		UserID:    userID,
		Used:      true,
		StartedAt: &startedAt,
	}

	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&record)
	if result.Error != nil {
		log.Printf("ERROR: [TrialRepository] Failed to activate trial for user %s: %v", userID, result.Error)
		return false, fmt.Errorf("failed to activate trial for user %s: %w", userID, result.Error)
	}

	if result.RowsAffected == 0 {
		log.Printf("INFO: [TrialRepository] Trial already consumed for user %s. Activation refused.", userID)
		return false, nil
	}

	log.Printf("INFO: [TrialRepository] Trial activated for user %s at %s.", userID, startedAt.Format(time.RFC3339))
	return true, nil
}

func (r *trialRepository) Reset(userID string) error {
	if userID == "" {
		return errors.New("user ID cannot be empty")
	}

	if err := r.db.Delete(&models.TrialRecord{}, "user_id = ?", userID).Error; err != nil {
		log.Printf("ERROR: [TrialRepository] Failed to reset trial for user %s: %v", userID, err)
		return fmt.Errorf("failed to reset trial for user %s: %w", userID, err)
	}
	log.Printf("WARN: [TrialRepository] Trial record reset for user %s (administrative action).", userID)
	return nil
}
