package services

import (
	"log"
	"time"

	"github.com/mescobar996/testcraft-ai-sub000/entitlement"
	"github.com/mescobar996/testcraft-ai-sub000/repository"
)

// Actor identifies who a request is charged to: a registered user ID or an
// anonymous fingerprint. Exactly one interpretation is active per request.
type Actor struct {
	ID        string
	Anonymous bool
}

// EntitlementService combines subscription tier, trial ledger and quota
// counters into generation permissions.
type EntitlementService interface {
	// Check resolves the full entitlement decision for an actor.
	Check(actor Actor) entitlement.Decision
	// CanGenerate reports whether a new generation is currently permitted.
	CanGenerate(actor Actor) bool
	// RemainingQuota returns the remaining generations this period, with
	// unlimited=true for pro/trial actors (remaining is meaningless then).
	RemainingQuota(actor Actor) (remaining int, unlimited bool)
	// Usage returns the generations consumed in the current period.
	Usage(actor Actor) int
	// QuotaResetTime returns when the actor's current quota period rolls over.
	QuotaResetTime(actor Actor) time.Time
	// StartTrial activates the one-time trial. Returns false when the user
	// has already consumed it; that is an expected outcome, not an error.
	StartTrial(userID string) (bool, error)
	// RecordGeneration charges one generation against the actor's quota.
	// Must be called exactly once per successful generation, after upstream
	// success.
	RecordGeneration(actor Actor) error
	// GetTrialInfo returns the derived trial standing for a user.
	GetTrialInfo(userID string) (entitlement.TrialStanding, error)
	// ResetTrial clears a user's trial ledger entry. Administrative only.
	ResetTrial(userID string) error
	// Tier returns the user's current subscription tier.
	Tier(actor Actor) entitlement.Tier
	// Overview resolves the decision together with the tier, period usage
	// and trial standing it was derived from, reading each store at most
	// once. Bootstrap-style surfaces that render the full standing should
	// use this instead of calling Check, Tier, Usage and GetTrialInfo
	// separately.
	Overview(actor Actor) Overview
}

// Overview bundles an entitlement decision with the inputs that produced it.
type Overview struct {
	Decision entitlement.Decision
	Tier     entitlement.Tier
	Used     int
	// Trial is nil for anonymous actors and when the ledger is unreadable.
	Trial *entitlement.TrialStanding
}

type entitlementService struct {
	userRepo      repository.UserRepository
	trialRepo     repository.TrialRepository
	quotaRepo     repository.QuotaRepository
	anonLimit     int
	freeLimit     int
	trialDuration time.Duration
	now           func() time.Time
}

// NewEntitlementService creates the entitlement service. Limits are the
// per-period caps for the metered tiers (anonymous per day, free per month).
func NewEntitlementService(
	userRepo repository.UserRepository,
	trialRepo repository.TrialRepository,
	quotaRepo repository.QuotaRepository,
	anonLimit, freeLimit int,
	trialDuration time.Duration,
) EntitlementService {
	return &entitlementService{
		userRepo:      userRepo,
		trialRepo:     trialRepo,
		quotaRepo:     quotaRepo,
		anonLimit:     anonLimit,
		freeLimit:     freeLimit,
		trialDuration: trialDuration,
		now:           time.Now,
	}
}

// Check resolves tier and trial first and short-circuits before any quota
// read when either grants unlimited access. That ordering is also the
// failure policy: quota storage being down can never block a pro or trial
// user, and for metered tiers a failed read degrades to count=0 (fail open)
// so legitimate low-risk traffic is not blocked by an outage.
func (s *entitlementService) Check(actor Actor) entitlement.Decision {
	tier := s.Tier(actor)
	trialActive := false
	if !actor.Anonymous {
		if standing, err := s.GetTrialInfo(actor.ID); err == nil {
			trialActive = standing.IsActive
		} else {
			log.Printf("WARN: [EntitlementService] Trial lookup failed for user %s: %v. Treating trial as inactive.", actor.ID, err)
		}
	}

	limit := s.limitFor(actor)
	if tier.Unlimited() || trialActive {
		return entitlement.Resolve(tier, trialActive, actor.Anonymous, 0, limit)
	}

	count := s.Usage(actor)
	return entitlement.Resolve(tier, trialActive, actor.Anonymous, count, limit)
}

func (s *entitlementService) CanGenerate(actor Actor) bool {
	return s.Check(actor).Allowed
}

func (s *entitlementService) RemainingQuota(actor Actor) (int, bool) {
	dec := s.Check(actor)
	return dec.Remaining, dec.Unlimited
}

func (s *entitlementService) Usage(actor Actor) int {
	periodKey := entitlement.PeriodKey(s.now(), entitlement.GranularityFor(actor.Anonymous))
	count, err := s.quotaRepo.GetCount(actor.ID, periodKey)
	if err != nil {
		log.Printf("WARN: [EntitlementService] Quota read failed for actor %s: %v. Failing open with count=0.", actor.ID, err)
		return 0
	}
	return count
}

func (s *entitlementService) QuotaResetTime(actor Actor) time.Time {
	return entitlement.PeriodEnd(s.now(), entitlement.GranularityFor(actor.Anonymous))
}

func (s *entitlementService) StartTrial(userID string) (bool, error) {
	return s.trialRepo.MarkUsed(userID, s.now())
}

// RecordGeneration increments the period counter even for trial and pro
// actors: entitlement is not gated on the counter for them, but the usage
// still matters for post-trial accounting.
func (s *entitlementService) RecordGeneration(actor Actor) error {
	periodKey := entitlement.PeriodKey(s.now(), entitlement.GranularityFor(actor.Anonymous))
	_, err := s.quotaRepo.Increment(actor.ID, periodKey)
	return err
}

func (s *entitlementService) GetTrialInfo(userID string) (entitlement.TrialStanding, error) {
	record, err := s.trialRepo.Get(userID)
	if err != nil {
		return entitlement.TrialStanding{}, err
	}
	return entitlement.TrialInfo(record.Used, record.StartedAt, s.now(), s.trialDuration), nil
}

// Overview performs the same resolution as Check but keeps the intermediate
// reads for the caller. Usage is read even for unlimited actors because the
// caller is rendering standing, not gating access; a failed read still fails
// open to 0 inside Usage, so storage trouble never breaks the bootstrap.
func (s *entitlementService) Overview(actor Actor) Overview {
	tier := s.Tier(actor)
	var trial *entitlement.TrialStanding
	trialActive := false
	if !actor.Anonymous {
		if standing, err := s.GetTrialInfo(actor.ID); err == nil {
			trial = &standing
			trialActive = standing.IsActive
		} else {
			log.Printf("WARN: [EntitlementService] Trial lookup failed for user %s: %v. Treating trial as inactive.", actor.ID, err)
		}
	}

	used := s.Usage(actor)
	return Overview{
		Decision: entitlement.Resolve(tier, trialActive, actor.Anonymous, used, s.limitFor(actor)),
		Tier:     tier,
		Used:     used,
		Trial:    trial,
	}
}

func (s *entitlementService) ResetTrial(userID string) error {
	return s.trialRepo.Reset(userID)
}

// Tier returns free for anonymous actors without touching storage; for
// registered users a failed lookup degrades to free so a bad read can never
// grant paid capabilities.
func (s *entitlementService) Tier(actor Actor) entitlement.Tier {
	if actor.Anonymous {
		return entitlement.TierFree
	}
	tier, err := s.userRepo.GetTier(actor.ID)
	if err != nil {
		log.Printf("WARN: [EntitlementService] Tier lookup failed for user %s: %v. Treating as free tier.", actor.ID, err)
		return entitlement.TierFree
	}
	return tier
}

func (s *entitlementService) limitFor(actor Actor) int {
	if actor.Anonymous {
		return s.anonLimit
	}
	return s.freeLimit
}
