package repository

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mescobar996/testcraft-ai-sub000/models"
)

// QuotaRepository defines the interface for the per-actor, per-period
// generation counters. Rollover is handled by the caller passing the current
// period key: rows for past periods are left in place and simply never read.
type QuotaRepository interface {
	// GetCount returns the consumed count for the actor in the given period,
	// or 0 if no counter exists yet.
	GetCount(actorID, periodKey string) (int, error)
	// Increment atomically increments the actor's counter for the period,
	// creating it if absent, and returns the new count.
	Increment(actorID, periodKey string) (int, error)
}

type quotaRepository struct {
	db *gorm.DB
}

// NewQuotaRepository creates a new instance of QuotaRepository.
func NewQuotaRepository(db *gorm.DB) QuotaRepository {
	return &quotaRepository{db: db}
}

// GetCount retrieves the current counter for an actor and period. A missing
// row is not an error: it reads as zero, which also covers the rollover case
// where only a stale prior-period row exists.
func (r *quotaRepository) GetCount(actorID, periodKey string) (int, error) {
	if actorID == "" {
		return 0, errors.New("actor ID cannot be empty")
	}

	var counter models.QuotaCounter
	err := r.db.First(&counter, "actor_id = ? AND period_key = ?", actorID, periodKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		log.Printf("ERROR: [QuotaRepository] Failed to fetch counter for actor %s period %s: %v", actorID, periodKey, err)
		return 0, fmt.Errorf("failed to fetch quota counter for actor %s: %w", actorID, err)
	}
	return counter.Count, nil
}

// Increment increments the counter for an actor and period. Uses GORM's
// OnConflict (UPSERT) so concurrent increments cannot lose updates: a new
// row starts at 1, an existing row is bumped in SQL rather than read-modify-
// written in Go.
func (r *quotaRepository) Increment(actorID, periodKey string) (int, error) {
	if actorID == "" {
		return 0, errors.New("actor ID cannot be empty")
	}

	counterToUpsert := models.QuotaCounter{
		ActorID:   actorID,
		PeriodKey: periodKey,
		Count:     1, // This is for the INSERT part of UPSERT
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}, {Name: "period_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1")}),
	}).Create(&counterToUpsert).Error
	if err != nil {
		log.Printf("ERROR: [QuotaRepository] Failed to increment counter for actor %s period %s: %v", actorID, periodKey, err)
		return 0, fmt.Errorf("failed to increment quota counter for actor %s: %w", actorID, err)
	}

	// The struct is not updated with the incremented value when the row
	// already existed, so re-fetch for the actual current count.
	var current models.QuotaCounter
	if fetchErr := r.db.First(&current, "actor_id = ? AND period_key = ?", actorID, periodKey).Error; fetchErr != nil {
		log.Printf("ERROR: [QuotaRepository] Failed to fetch counter for actor %s after increment: %v", actorID, fetchErr)
		return 0, fmt.Errorf("failed to fetch quota counter for actor %s after increment: %w", actorID, fetchErr)
	}

	log.Printf("INFO: [QuotaRepository] Incremented quota for actor %s period %s. New count: %d", actorID, periodKey, current.Count)
	return current.Count, nil
}
