package services

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mescobar996/testcraft-ai-sub000/cache"
	"github.com/mescobar996/testcraft-ai-sub000/entitlement"
	"github.com/mescobar996/testcraft-ai-sub000/ratelimit"
)

// MockLLMClient is a mock type for the LLMClient interface
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

// MockEntitlementService is a mock type for the EntitlementService interface
type MockEntitlementService struct {
	mock.Mock
}

func (m *MockEntitlementService) Check(actor Actor) entitlement.Decision {
	args := m.Called(actor)
	return args.Get(0).(entitlement.Decision)
}

func (m *MockEntitlementService) CanGenerate(actor Actor) bool {
	args := m.Called(actor)
	return args.Bool(0)
}

func (m *MockEntitlementService) RemainingQuota(actor Actor) (int, bool) {
	args := m.Called(actor)
	return args.Int(0), args.Bool(1)
}

func (m *MockEntitlementService) Usage(actor Actor) int {
	args := m.Called(actor)
	return args.Int(0)
}

func (m *MockEntitlementService) QuotaResetTime(actor Actor) time.Time {
	args := m.Called(actor)
	return args.Get(0).(time.Time)
}

func (m *MockEntitlementService) StartTrial(userID string) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEntitlementService) RecordGeneration(actor Actor) error {
	args := m.Called(actor)
	return args.Error(0)
}

func (m *MockEntitlementService) GetTrialInfo(userID string) (entitlement.TrialStanding, error) {
	args := m.Called(userID)
	return args.Get(0).(entitlement.TrialStanding), args.Error(1)
}

func (m *MockEntitlementService) ResetTrial(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockEntitlementService) Tier(actor Actor) entitlement.Tier {
	args := m.Called(actor)
	return args.Get(0).(entitlement.Tier)
}

func (m *MockEntitlementService) Overview(actor Actor) Overview {
	args := m.Called(actor)
	return args.Get(0).(Overview)
}

const validLLMOutput = `[
  {"id": "TC-001", "title": "Valid login", "preconditions": ["User exists"], "steps": ["Open login page", "Submit valid credentials"], "expected": "Dashboard is shown", "priority": "high"},
  {"id": "TC-002", "title": "Wrong password", "steps": ["Submit wrong password"], "expected": "Error is shown", "priority": "medium"}
]`

func llmResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

type generationFixture struct {
	svc          GenerationService
	entitlements *MockEntitlementService
	client       *MockLLMClient
	limiter      *ratelimit.Limiter
	genCache     *cache.Cache
}

func newGenerationFixture(t *testing.T, anonRate, authRate int) *generationFixture {
	t.Helper()
	entitlements := new(MockEntitlementService)
	client := new(MockLLMClient)
	limiter := ratelimit.New(time.Hour, 0)
	genCache := cache.New(24*time.Hour, 0)
	t.Cleanup(func() {
		limiter.Stop()
		genCache.Stop()
	})
	return &generationFixture{
		svc:          NewGenerationService(entitlements, limiter, genCache, client, "gpt-4o-mini", 4096, 45*time.Second, anonRate, authRate),
		entitlements: entitlements,
		client:       client,
		limiter:      limiter,
		genCache:     genCache,
	}
}

func allowedDecision() entitlement.Decision {
	return entitlement.Decision{Allowed: true, Remaining: 4, Limit: 5, Source: entitlement.SourceAnonymous}
}

func TestGenerate_SuccessChargesQuotaAndCaches(t *testing.T) {
	f := newGenerationFixture(t, 10, 100)
	actor := Actor{ID: "u1"}

	f.entitlements.On("Check", actor).Return(allowedDecision())
	f.entitlements.On("RecordGeneration", actor).Return(nil)
	f.client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(llmResponse(validLLMOutput), nil).Once()

	result, err := f.svc.Generate(context.Background(), actor, "login flow", "web app")

	assert.NoError(t, err)
	assert.Len(t, result.TestCases, 2)
	assert.Equal(t, "TC-001", result.TestCases[0].ID)
	assert.False(t, result.Cached)
	assert.NotEmpty(t, result.RequestID)
	f.entitlements.AssertNumberOfCalls(t, "RecordGeneration", 1)

	// Identical input is served from cache: no second upstream call, no
	// second quota charge.
	second, err := f.svc.Generate(context.Background(), actor, "login flow", "web app")
	assert.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, result.RequestID, second.RequestID)
	f.client.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
	f.entitlements.AssertNumberOfCalls(t, "RecordGeneration", 1)
}

func TestGenerate_DifferentInputMissesCache(t *testing.T) {
	f := newGenerationFixture(t, 10, 100)
	actor := Actor{ID: "u1"}

	f.entitlements.On("Check", actor).Return(allowedDecision())
	f.entitlements.On("RecordGeneration", actor).Return(nil)
	f.client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(llmResponse(validLLMOutput), nil)

	_, err := f.svc.Generate(context.Background(), actor, "login flow", "web app")
	assert.NoError(t, err)
	_, err = f.svc.Generate(context.Background(), actor, "login flow ", "web app")
	assert.NoError(t, err)

	f.client.AssertNumberOfCalls(t, "CreateChatCompletion", 2)
}

func TestGenerate_RateLimitRejectsBeforeAnyOtherWork(t *testing.T) {
	f := newGenerationFixture(t, 1, 100)
	actor := Actor{ID: "203.0.113.7", Anonymous: true}

	f.entitlements.On("Check", actor).Return(allowedDecision())
	f.entitlements.On("RecordGeneration", actor).Return(nil)
	f.client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(llmResponse(validLLMOutput), nil)

	_, err := f.svc.Generate(context.Background(), actor, "first", "")
	assert.NoError(t, err)

	_, err = f.svc.Generate(context.Background(), actor, "second", "")

	var rateErr *RateLimitedError
	assert.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 1, rateErr.Limit)
	assert.False(t, rateErr.ResetTime.IsZero())
	// Entitlement was only consulted for the admitted request.
	f.entitlements.AssertNumberOfCalls(t, "Check", 1)
	f.client.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
}

func TestGenerate_QuotaExceededShortCircuits(t *testing.T) {
	f := newGenerationFixture(t, 10, 100)
	actor := Actor{ID: "anon_abc", Anonymous: true}
	reset := time.Date(2025, time.July, 11, 0, 0, 0, 0, time.UTC)

	f.entitlements.On("Check", actor).Return(entitlement.Decision{Allowed: false, Limit: 5, Source: entitlement.SourceAnonymous})
	f.entitlements.On("QuotaResetTime", actor).Return(reset)

	_, err := f.svc.Generate(context.Background(), actor, "login flow", "")

	var quotaErr *QuotaExceededError
	assert.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 5, quotaErr.Limit)
	assert.Equal(t, reset, quotaErr.ResetTime)
	f.client.AssertNotCalled(t, "CreateChatCompletion", mock.Anything, mock.Anything)
	f.entitlements.AssertNotCalled(t, "RecordGeneration", mock.Anything)
}

func TestGenerate_UpstreamFailureChargesNothingAndCachesNothing(t *testing.T) {
	f := newGenerationFixture(t, 10, 100)
	actor := Actor{ID: "u1"}

	f.entitlements.On("Check", actor).Return(allowedDecision())
	f.client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, errors.New("connection reset"))

	_, err := f.svc.Generate(context.Background(), actor, "login flow", "")

	assert.ErrorIs(t, err, ErrUpstreamFailure)
	f.entitlements.AssertNotCalled(t, "RecordGeneration", mock.Anything)
	assert.Equal(t, 0, f.genCache.Len())
}

func TestGenerate_EmptyChoicesIsUpstreamFailure(t *testing.T) {
	f := newGenerationFixture(t, 10, 100)
	actor := Actor{ID: "u1"}

	f.entitlements.On("Check", actor).Return(allowedDecision())
	f.client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, nil)

	_, err := f.svc.Generate(context.Background(), actor, "login flow", "")

	assert.ErrorIs(t, err, ErrUpstreamFailure)
}

func TestGenerate_UnparseableResponseIsUpstreamFailure(t *testing.T) {
	f := newGenerationFixture(t, 10, 100)
	actor := Actor{ID: "u1"}

	f.entitlements.On("Check", actor).Return(allowedDecision())
	f.client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(llmResponse("I cannot help with that."), nil)

	_, err := f.svc.Generate(context.Background(), actor, "login flow", "")

	assert.ErrorIs(t, err, ErrUpstreamFailure)
	f.entitlements.AssertNotCalled(t, "RecordGeneration", mock.Anything)
}

func TestGenerate_RecordFailureDoesNotFailRequest(t *testing.T) {
	f := newGenerationFixture(t, 10, 100)
	actor := Actor{ID: "u1"}

	f.entitlements.On("Check", actor).Return(allowedDecision())
	f.entitlements.On("RecordGeneration", actor).Return(errors.New("database is locked"))
	f.client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(llmResponse(validLLMOutput), nil)

	result, err := f.svc.Generate(context.Background(), actor, "login flow", "")

	assert.NoError(t, err)
	assert.Len(t, result.TestCases, 2)
}

func TestParseTestCases_FencedCodeBlock(t *testing.T) {
	fenced := "```json\n" + validLLMOutput + "\n```"
	testCases, err := parseTestCases(fenced)

	assert.NoError(t, err)
	assert.Len(t, testCases, 2)
}

func TestParseTestCases_ProseAroundArray(t *testing.T) {
	wrapped := "Here are your test cases:\n" + validLLMOutput + "\nLet me know if you need more."
	testCases, err := parseTestCases(wrapped)

	assert.NoError(t, err)
	assert.Len(t, testCases, 2)
	assert.Equal(t, "TC-002", testCases[1].ID)
}

func TestParseTestCases_NoArray(t *testing.T) {
	_, err := parseTestCases("no test cases here")
	assert.Error(t, err)
}
