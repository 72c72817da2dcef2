package models

import "github.com/mescobar996/testcraft-ai-sub000/entitlement"

// InitResponse defines the structure for the /api/init endpoint response.
// It gives the client everything it needs to render the session's quota and
// trial standing in one round trip.
type InitResponse struct {
	UserType  string                     `json:"user_type"` // "anonymous" or "registered"
	UserID    string                     `json:"user_id"`
	Tier      string                     `json:"tier"`
	Unlimited bool                       `json:"unlimited"`
	Limit     int                        `json:"limit"`     // Per-period generation limit (0 when unlimited)
	Used      int                        `json:"used"`      // Generations consumed this period
	Remaining int                        `json:"remaining"` // Calculated remaining quota (0 when unlimited)
	Source    entitlement.Source         `json:"source"`
	Trial     *entitlement.TrialStanding `json:"trial,omitempty"` // Registered users only
}
