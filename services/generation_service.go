package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mescobar996/testcraft-ai-sub000/cache"
	"github.com/mescobar996/testcraft-ai-sub000/models"
	"github.com/mescobar996/testcraft-ai-sub000/ratelimit"
)

// systemPrompt instructs the model to emit test cases as a strict JSON array
// so the response can be parsed without scraping prose.
const systemPrompt = `You are a senior QA engineer. Convert the given software requirement into structured test cases.
Respond with ONLY a JSON array, no prose. Each element must have the fields:
"id" (string, e.g. "TC-001"), "title" (string), "preconditions" (array of strings),
"steps" (array of strings), "expected" (string), "priority" ("high", "medium" or "low").
Cover the happy path, validation failures and relevant edge cases.`

// LLMClient is the narrow view of the OpenAI client this service needs.
// *openai.Client satisfies it.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// GenerationService runs the full generation pipeline: rate limiter, then
// entitlement, then cache, and only on a cache miss the upstream LLM call.
// Quota is charged after upstream success only, so an aborted or failed call
// never consumes quota.
type GenerationService interface {
	Generate(ctx context.Context, actor Actor, requirement, contextText string) (*models.GenerationResult, error)
}

type generationService struct {
	entitlements EntitlementService
	limiter      *ratelimit.Limiter
	genCache     *cache.Cache
	client       LLMClient
	model        string
	maxTokens    int
	timeout      time.Duration
	anonRate     int
	authRate     int
	now          func() time.Time
}

// NewGenerationService creates the generation orchestrator. anonRate and
// authRate are the per-window request caps for the abuse guard.
func NewGenerationService(
	entitlements EntitlementService,
	limiter *ratelimit.Limiter,
	genCache *cache.Cache,
	client LLMClient,
	model string,
	maxTokens int,
	timeout time.Duration,
	anonRate, authRate int,
) GenerationService {
	return &generationService{
		entitlements: entitlements,
		limiter:      limiter,
		genCache:     genCache,
		client:       client,
		model:        model,
		maxTokens:    maxTokens,
		timeout:      timeout,
		anonRate:     anonRate,
		authRate:     authRate,
		now:          time.Now,
	}
}

func (s *generationService) Generate(ctx context.Context, actor Actor, requirement, contextText string) (*models.GenerationResult, error) {
	// 1. Abuse guard. Cheapest check first; a rejection here does no other
	// work at all.
	identifier, maxRequests := s.rateKey(actor)
	rl := s.limiter.Check(identifier, maxRequests)
	if !rl.Allowed {
		log.Printf("INFO: [GenerationService] Rate limited actor %s until %s.", actor.ID, rl.ResetTime.Format(time.RFC3339))
		return nil, &RateLimitedError{Limit: maxRequests, ResetTime: rl.ResetTime}
	}

	// 2. Billing quota.
	decision := s.entitlements.Check(actor)
	if !decision.Allowed {
		resetTime := s.entitlements.QuotaResetTime(actor)
		log.Printf("INFO: [GenerationService] Quota exhausted for actor %s (limit %d), resets at %s.", actor.ID, decision.Limit, resetTime.Format(time.RFC3339))
		return nil, &QuotaExceededError{Limit: decision.Limit, ResetTime: resetTime}
	}

	// 3. Memoized result for identical input. Served without charging quota:
	// no upstream spend happened.
	if cached, ok := s.genCache.Get(requirement, contextText); ok {
		log.Printf("INFO: [GenerationService] Cache hit for actor %s.", actor.ID)
		hit := *cached
		hit.Cached = true
		return &hit, nil
	}

	// 4. Upstream call with a bounded timeout.
	testCases, err := s.callUpstream(ctx, requirement, contextText)
	if err != nil {
		return nil, err
	}

	result := &models.GenerationResult{
		RequestID:   uuid.New().String(),
		TestCases:   testCases,
		Model:       s.model,
		GeneratedAt: s.now(),
	}

	// 5. Charge quota on success only. A failed increment is logged and
	// absorbed: availability of the generation feature outranks perfect
	// quota accounting.
	if err := s.entitlements.RecordGeneration(actor); err != nil {
		log.Printf("WARN: [GenerationService] Failed to record generation for actor %s: %v. Result returned uncounted.", actor.ID, err)
	}

	s.genCache.Set(requirement, contextText, result)
	return result, nil
}

func (s *generationService) callUpstream(ctx context.Context, requirement, contextText string) ([]models.TestCase, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userPrompt := "Requirement:\n" + requirement
	if contextText != "" {
		userPrompt += "\n\nAdditional context:\n" + contextText
	}

	resp, err := s.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		log.Printf("ERROR: [GenerationService] Upstream LLM call failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	if len(resp.Choices) == 0 {
		log.Printf("ERROR: [GenerationService] Upstream LLM returned no choices.")
		return nil, fmt.Errorf("%w: empty response", ErrUpstreamFailure)
	}

	testCases, err := parseTestCases(resp.Choices[0].Message.Content)
	if err != nil {
		log.Printf("ERROR: [GenerationService] Failed to parse upstream response: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	return testCases, nil
}

// parseTestCases extracts the JSON array from the model output. Models
// occasionally wrap the array in a fenced code block or lead with prose, so
// parsing falls back to the outermost bracket pair.
func parseTestCases(content string) ([]models.TestCase, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var testCases []models.TestCase
	if err := json.Unmarshal([]byte(trimmed), &testCases); err == nil {
		return testCases, nil
	}

	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &testCases); err != nil {
		return nil, fmt.Errorf("malformed test case array: %v", err)
	}
	return testCases, nil
}

// rateKey namespaces limiter identifiers so an IP fingerprint and a user ID
// that happen to collide textually still get separate buckets.
func (s *generationService) rateKey(actor Actor) (string, int) {
	if actor.Anonymous {
		return "ip:" + actor.ID, s.anonRate
	}
	return "user:" + actor.ID, s.authRate
}
