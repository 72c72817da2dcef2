package models

import "time"

// User mirrors the billing provider's view of an account: who the user is
// and what subscription tier they currently hold. The tier column is
// refreshed by the checkout webhook, not by this service.
type User struct {
	ID        string    `gorm:"primaryKey"`
	Email     string    `gorm:"uniqueIndex"`
	Tier      string    `gorm:"type:varchar(20);default:'free';not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}
