package repository

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/mescobar996/testcraft-ai-sub000/entitlement"
	"github.com/mescobar996/testcraft-ai-sub000/models"
)

// UserRepository exposes the billing collaborator's view of an account. This
// service only ever reads the tier; writes happen through the checkout
// webhook in the billing system.
type UserRepository interface {
	// GetTier returns the subscription tier for a user. An unknown user
	// reads as free tier.
	GetTier(userID string) (entitlement.Tier, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetTier(userID string) (entitlement.Tier, error) {
	if userID == "" {
		return entitlement.TierFree, errors.New("user ID cannot be empty")
	}

	var user models.User
	err := r.db.First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entitlement.TierFree, nil
		}
		log.Printf("ERROR: [UserRepository] Failed to fetch user %s: %v", userID, err)
		return entitlement.TierFree, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}
	return entitlement.ParseTier(user.Tier), nil
}
