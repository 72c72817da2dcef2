package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mescobar996/testcraft-ai-sub000/entitlement"
	"github.com/mescobar996/testcraft-ai-sub000/models"
	"github.com/mescobar996/testcraft-ai-sub000/services"
	"github.com/mescobar996/testcraft-ai-sub000/utils"
)

// APIHandler holds all dependencies for API handlers.
type APIHandler struct {
	entitlementService services.EntitlementService
	generationService  services.GenerationService
}

// NewAPIHandler creates a new APIHandler with necessary dependencies.
func NewAPIHandler(
	entitlementService services.EntitlementService,
	generationService services.GenerationService,
) *APIHandler {
	return &APIHandler{
		entitlementService: entitlementService,
		generationService:  generationService,
	}
}

// GenerateRequest is the request body for POST /api/generate.
type GenerateRequest struct {
	UserID      string `json:"user_id,omitempty"`
	Requirement string `json:"requirement" binding:"required"`
	Context     string `json:"context,omitempty"`
}

// TrialRequest is the request body for the trial endpoints.
type TrialRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// actorFrom resolves the charged identity for a request: the supplied user
// ID for registered callers, or an IP-derived fingerprint for anonymous
// traffic.
func actorFrom(c *gin.Context, userID string) services.Actor {
	if userID != "" {
		return services.Actor{ID: userID}
	}
	return services.Actor{ID: utils.AnonymousFingerprint(c.ClientIP()), Anonymous: true}
}

// InitHandler returns session bootstrap information: resolved identity,
// quota standing and trial standing in one round trip.
func (h *APIHandler) InitHandler(c *gin.Context) {
	actor := actorFrom(c, c.Query("userID"))

	ov := h.entitlementService.Overview(actor)
	response := models.InitResponse{
		UserType:  "registered",
		UserID:    actor.ID,
		Tier:      string(ov.Tier),
		Unlimited: ov.Decision.Unlimited,
		Limit:     ov.Decision.Limit,
		Used:      ov.Used,
		Remaining: ov.Decision.Remaining,
		Source:    ov.Decision.Source,
		Trial:     ov.Trial,
	}
	if actor.Anonymous {
		response.UserType = "anonymous"
	}

	c.JSON(http.StatusOK, response)
}

// GenerateHandler runs one generation through the full pipeline and maps
// the service error taxonomy onto HTTP statuses: 429 for the abuse guard,
// 403 for exhausted quota, 502 for upstream failure.
func (h *APIHandler) GenerateHandler(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}

	actor := actorFrom(c, req.UserID)
	log.Printf("INFO: [APIHandler] Generation request from actor '%s' (anonymous=%t).", actor.ID, actor.Anonymous)

	result, err := h.generationService.Generate(c.Request.Context(), actor, req.Requirement, req.Context)
	if err != nil {
		var rateErr *services.RateLimitedError
		var quotaErr *services.QuotaExceededError
		switch {
		case errors.As(err, &rateErr):
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rateErr.ResetTime)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Too many requests. Please slow down and try again shortly.",
				"reset_time": rateErr.ResetTime,
			})
		case errors.As(err, &quotaErr):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":      fmt.Sprintf("You have used all %d generations for this period.", quotaErr.Limit),
				"reset_time": quotaErr.ResetTime,
			})
		case errors.Is(err, services.ErrUpstreamFailure):
			utils.SendJSONError(c, http.StatusBadGateway, "Generation service is temporarily unavailable. Please try again.", err)
		default:
			utils.SendJSONError(c, http.StatusInternalServerError, "", err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// retryAfterSeconds converts a window reset time into a Retry-After value.
// Truncation near the boundary can yield 0 or a negative number, which the
// header does not allow, so the floor is one second.
func retryAfterSeconds(resetTime time.Time) int {
	seconds := int(time.Until(resetTime).Seconds())
	if seconds < 1 {
		return 1
	}
	return seconds
}

// StartTrialHandler activates the one-time trial. Ineligibility is an
// expected outcome and comes back as started=false, not as an error status.
func (h *APIHandler) StartTrialHandler(c *gin.Context) {
	var req TrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}

	started, err := h.entitlementService.StartTrial(req.UserID)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Could not start trial.", err)
		return
	}

	standing, standingErr := h.entitlementService.GetTrialInfo(req.UserID)
	if standingErr != nil {
		log.Printf("WARN: [APIHandler] Trial standing unavailable for user %s after activation: %v", req.UserID, standingErr)
	}

	c.JSON(http.StatusOK, gin.H{"started": started, "trial": standing})
}

// EntitlementHandler exposes the resolved decision and the capability table
// entry for the actor's tier.
func (h *APIHandler) EntitlementHandler(c *gin.Context) {
	actor := actorFrom(c, c.Query("userID"))

	ov := h.entitlementService.Overview(actor)

	c.JSON(http.StatusOK, gin.H{
		"tier":       ov.Tier,
		"allowed":    ov.Decision.Allowed,
		"unlimited":  ov.Decision.Unlimited,
		"remaining":  remainingField(ov.Decision),
		"limit":      limitField(ov.Decision),
		"source":     ov.Decision.Source,
		"features":   entitlement.Features(ov.Tier),
		"reset_time": h.entitlementService.QuotaResetTime(actor),
	})
}

// AdminResetTrialHandler clears a user's trial ledger entry. Reached only
// through the admin-token-gated route group.
func (h *APIHandler) AdminResetTrialHandler(c *gin.Context) {
	var req TrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}

	if err := h.entitlementService.ResetTrial(req.UserID); err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Could not reset trial.", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reset": true, "user_id": req.UserID})
}

// remainingField renders the "number | unlimited" union the clients expect.
func remainingField(d entitlement.Decision) interface{} {
	if d.Unlimited {
		return "unlimited"
	}
	return d.Remaining
}

func limitField(d entitlement.Decision) interface{} {
	if d.Unlimited {
		return "unlimited"
	}
	return d.Limit
}
