package models

import "time"

// QuotaCounter tracks generations consumed by one actor within one quota
// period. PeriodKey is a day string ("2006-01-02") for anonymous actors and
// a month string ("2006-01") for registered ones. Counters for past periods
// are simply ignored by reads; they are never migrated or summed into the
// current period.
type QuotaCounter struct {
	ActorID   string    `gorm:"primaryKey"`
	PeriodKey string    `gorm:"primaryKey"`
	Count     int       `gorm:"default:0"`
	CreatedAt time.Time // Automatically managed by GORM
	UpdatedAt time.Time // Automatically managed by GORM
}

// TableName specifies the table name for the QuotaCounter model.
func (QuotaCounter) TableName() string {
	return "quota_counters"
}

// TrialRecord is the per-user trial ledger row. Once Used is true it never
// reverts, and StartedAt is written exactly once at activation — a user gets
// one trial window for the lifetime of the account.
type TrialRecord struct {
	UserID    string `gorm:"primaryKey"`
	Used      bool   `gorm:"default:false"`
	StartedAt *time.Time
	CreatedAt time.Time // Automatically managed by GORM
	UpdatedAt time.Time // Automatically managed by GORM
}

// TableName specifies the table name for the TrialRecord model.
func (TrialRecord) TableName() string {
	return "trial_records"
}
