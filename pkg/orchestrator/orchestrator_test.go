package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepilot/hirepilot/pkg/company"
	"github.com/hirepilot/hirepilot/pkg/config"
	"github.com/hirepilot/hirepilot/pkg/credits"
	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/llm"
	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/prompt"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// fakeProvider replays scripted responses and records the requests it saw.
type fakeProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	errs      []error
	requests  []llm.Request
}

func (f *fakeProvider) Vendor() string { return "fake" }

func (f *fakeProvider) Invoke(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	if len(f.responses) > 0 {
		return f.responses[len(f.responses)-1], nil
	}
	return &llm.Response{Text: "ok"}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func testConfig() *config.Config {
	return &config.Config{
		ChatProvider:        "fake:chat-1",
		ImageProvider:       "fake:image-1",
		VideoProvider:       "fake:veo-1",
		MaxAgentTurns:       8,
		TextTimeout:         5 * time.Second,
		VideoSegmentTimeout: time.Minute,
		RenderPollInterval:  time.Second,
		RenderWorkers:       1,
		MaxRenderSeconds:    120,
	}
}

type harness struct {
	orch     *Orchestrator
	store    *docstore.MemoryStore
	ledger   *credits.Ledger
	jobs     *services.JobService
	provider *fakeProvider
}

func newHarness(t *testing.T, provider *fakeProvider) *harness {
	t.Helper()
	store := docstore.NewMemoryStore()
	registry := llm.NewRegistry()
	registry.RegisterText(provider)
	ledger := credits.NewLedger(store, credits.DefaultRates())
	jobs := services.NewJobService(store)
	chats := services.NewChatService(store)
	companies := company.NewLoader(store)
	engine := NewEngine(prompt.NewRegistry(), registry, ledger, testConfig())
	return &harness{
		orch:     New(engine, store, jobs, chats, companies),
		store:    store,
		ledger:   ledger,
		jobs:     jobs,
		provider: provider,
	}
}

func (h *harness) completeJob(t *testing.T, userID string) *models.Job {
	t.Helper()
	job, err := h.jobs.Create(context.Background(), userID, models.JobIntake{
		RoleTitle:      "Backend Engineer",
		CompanyName:    "Acme GmbH",
		Location:       "Berlin",
		SeniorityLevel: "senior",
		EmploymentType: "full_time",
		JobDescription: "Build the ledger service.",
	})
	require.NoError(t, err)
	return job
}

func suggestResponse() *llm.Response {
	return &llm.Response{
		Parsed: map[string]any{
			"suggestions": []any{
				map[string]any{
					"fieldId":    "benefits",
					"proposal":   "30 days PTO, remote budget",
					"rationale":  "competitive in Berlin",
					"confidence": 0.9,
				},
			},
		},
		Usage: llm.Usage{PromptTokens: 600, CandidatesTokens: 400},
	}
}

func TestSuggestHappyPathThenCache(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{suggestResponse()}}
	h := newHarness(t, provider)
	ctx := context.Background()

	require.NoError(t, h.ledger.Grant(ctx, "user-1", 1000))
	job := h.completeJob(t, "user-1")

	result, err := h.orch.Run(ctx, &TaskRequest{
		UserID:   "user-1",
		TaskType: models.TaskSuggest,
		Context:  map[string]any{CtxJobID: job.ID},
	})
	require.NoError(t, err)
	assert.True(t, result.Refreshed)
	assert.Nil(t, result.Failure)
	assert.Equal(t, int64(1), result.Credits, "1000 tokens at default rate")

	suggestions, _ := result.Payload["suggestions"].([]any)
	require.Len(t, suggestions, 1)
	first := suggestions[0].(map[string]any)
	assert.Equal(t, "benefits", first["fieldId"])

	bal, err := h.ledger.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(999), bal.Balance)
	assert.Equal(t, int64(0), bal.Reserved)

	// Unchanged required intake: second call is a cache hit, no provider call.
	result, err = h.orch.Run(ctx, &TaskRequest{
		UserID:   "user-1",
		TaskType: models.TaskSuggest,
		Context:  map[string]any{CtxJobID: job.ID},
	})
	require.NoError(t, err)
	assert.False(t, result.Refreshed)
	assert.Equal(t, 1, provider.calls())

	// forceRefresh bypasses the cache.
	result, err = h.orch.Run(ctx, &TaskRequest{
		UserID:   "user-1",
		TaskType: models.TaskSuggest,
		Context:  map[string]any{CtxJobID: job.ID, CtxForceRefresh: true},
	})
	require.NoError(t, err)
	assert.True(t, result.Refreshed)
	assert.Equal(t, 2, provider.calls())
}

func TestSuggestRequiredFieldChangeInvalidatesCache(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{suggestResponse()}}
	h := newHarness(t, provider)
	ctx := context.Background()

	require.NoError(t, h.ledger.Grant(ctx, "user-1", 1000))
	job := h.completeJob(t, "user-1")

	_, err := h.orch.Run(ctx, &TaskRequest{
		UserID: "user-1", TaskType: models.TaskSuggest,
		Context: map[string]any{CtxJobID: job.ID},
	})
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls())

	// Deltas on a required field change the fingerprint in the same request.
	_, err = h.orch.Run(ctx, &TaskRequest{
		UserID: "user-1", TaskType: models.TaskSuggest,
		Context: map[string]any{
			CtxJobID:  job.ID,
			CtxDeltas: map[string]any{models.FieldRoleTitle: "Platform Engineer"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls())
}

func TestSuggestSkipsIncompleteIntake(t *testing.T) {
	provider := &fakeProvider{}
	h := newHarness(t, provider)
	ctx := context.Background()

	require.NoError(t, h.ledger.Grant(ctx, "user-1", 1000))
	job, err := h.jobs.Create(ctx, "user-1", models.JobIntake{RoleTitle: "Engineer"})
	require.NoError(t, err)

	result, err := h.orch.Run(ctx, &TaskRequest{
		UserID: "user-1", TaskType: models.TaskSuggest,
		Context: map[string]any{CtxJobID: job.ID},
	})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, SkipIntakeIncomplete, result.SkipReason)
	assert.Equal(t, 0, provider.calls())

	bal, _ := h.ledger.Balance(ctx, "user-1")
	assert.Equal(t, int64(1000), bal.Balance)
}

func TestRefineGatedOnRequiredComplete(t *testing.T) {
	provider := &fakeProvider{}
	h := newHarness(t, provider)
	ctx := context.Background()

	require.NoError(t, h.ledger.Grant(ctx, "user-1", 1000))
	job, err := h.jobs.Create(ctx, "user-1", models.JobIntake{RoleTitle: "Engineer"})
	require.NoError(t, err)

	_, err = h.orch.Run(ctx, &TaskRequest{
		UserID: "user-1", TaskType: models.TaskRefine,
		Context: map[string]any{CtxJobID: job.ID},
	})
	assert.ErrorIs(t, err, services.ErrRequirementsIncomplete)
	assert.Equal(t, 0, provider.calls())
}

func TestInsufficientCreditsBlocksProviderCall(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{suggestResponse()}}
	h := newHarness(t, provider)
	ctx := context.Background()

	job := h.completeJob(t, "user-1")

	_, err := h.orch.Run(ctx, &TaskRequest{
		UserID: "user-1", TaskType: models.TaskSuggest,
		Context: map[string]any{CtxJobID: job.ID},
	})
	assert.ErrorIs(t, err, services.ErrInsufficientCredits)
	assert.Equal(t, 0, provider.calls())
}

func TestProviderErrorRefundsAndPersistsFailure(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{{
		Error: &llm.ProviderError{Reason: ReasonProviderError, Message: "rate limited", RawPreview: "429"},
	}}}
	h := newHarness(t, provider)
	ctx := context.Background()

	require.NoError(t, h.ledger.Grant(ctx, "user-1", 1000))
	job := h.completeJob(t, "user-1")

	result, err := h.orch.Run(ctx, &TaskRequest{
		UserID: "user-1", TaskType: models.TaskSuggest,
		Context: map[string]any{CtxJobID: job.ID},
	})
	require.NoError(t, err, "provider failures ride the failure envelope, not the error path")
	require.NotNil(t, result.Failure)
	assert.Equal(t, ReasonProviderError, result.Failure.Reason)
	assert.Equal(t, int64(0), result.Credits)

	bal, _ := h.ledger.Balance(ctx, "user-1")
	assert.Equal(t, int64(1000), bal.Balance, "reservation fully refunded")
	assert.Equal(t, int64(0), bal.Reserved)

	doc, err := docstore.GetTyped[models.SuggestionDoc](ctx, h.store, models.CollectionSuggestions, job.ID)
	require.NoError(t, err)
	require.NotNil(t, doc.LastFailure)
	assert.Equal(t, ReasonProviderError, doc.LastFailure.Reason)
}

func TestTimeoutFailureReason(t *testing.T) {
	provider := &fakeProvider{errs: []error{context.DeadlineExceeded}}
	h := newHarness(t, provider)
	ctx := context.Background()

	require.NoError(t, h.ledger.Grant(ctx, "user-1", 1000))
	job := h.completeJob(t, "user-1")

	result, err := h.orch.Run(ctx, &TaskRequest{
		UserID: "user-1", TaskType: models.TaskSuggest,
		Context: map[string]any{CtxJobID: job.ID},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Failure)
	assert.Equal(t, ReasonTimeout, result.Failure.Reason)

	bal, _ := h.ledger.Balance(ctx, "user-1")
	assert.Equal(t, int64(1000), bal.Balance)
}

func TestSchemaValidationFailureStillCommitsCredits(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{{
		Text:  "I could not produce JSON, sorry.",
		Usage: llm.Usage{PromptTokens: 600, CandidatesTokens: 400},
	}}}
	h := newHarness(t, provider)
	ctx := context.Background()

	require.NoError(t, h.ledger.Grant(ctx, "user-1", 1000))
	job := h.completeJob(t, "user-1")

	result, err := h.orch.Run(ctx, &TaskRequest{
		UserID: "user-1", TaskType: models.TaskSuggest,
		Context: map[string]any{CtxJobID: job.ID},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Failure)
	assert.Equal(t, ReasonSchemaValidation, result.Failure.Reason)
	assert.NotEmpty(t, result.Failure.RawPreview)

	// The tokens were consumed; the commit stands.
	bal, _ := h.ledger.Balance(ctx, "user-1")
	assert.Equal(t, int64(999), bal.Balance)
}

// failingSaveStore fails every Save into one collection and delegates the
// rest to the wrapped store.
type failingSaveStore struct {
	docstore.Store
	collection string
	saveErr    error
}

func (s *failingSaveStore) Save(ctx context.Context, collection, id string, doc any) error {
	if collection == s.collection {
		return s.saveErr
	}
	return s.Store.Save(ctx, collection, id, doc)
}

func TestPersistFailureRefundsReservation(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{suggestResponse()}}
	saveErr := errors.New("disk full")
	store := &failingSaveStore{
		Store:      docstore.NewMemoryStore(),
		collection: models.CollectionSuggestions,
		saveErr:    saveErr,
	}
	registry := llm.NewRegistry()
	registry.RegisterText(provider)
	ledger := credits.NewLedger(store, credits.DefaultRates())
	jobs := services.NewJobService(store)
	engine := NewEngine(prompt.NewRegistry(), registry, ledger, testConfig())
	orch := New(engine, store, jobs, services.NewChatService(store), company.NewLoader(store))
	ctx := context.Background()

	require.NoError(t, ledger.Grant(ctx, "user-1", 1000))
	job, err := jobs.Create(ctx, "user-1", models.JobIntake{
		RoleTitle:      "Backend Engineer",
		CompanyName:    "Acme GmbH",
		Location:       "Berlin",
		SeniorityLevel: "senior",
		EmploymentType: "full_time",
		JobDescription: "Build the ledger service.",
	})
	require.NoError(t, err)

	_, err = orch.Run(ctx, &TaskRequest{
		UserID: "user-1", TaskType: models.TaskSuggest,
		Context: map[string]any{CtxJobID: job.ID},
	})
	require.ErrorIs(t, err, saveErr)
	require.Equal(t, 1, provider.calls())

	// Nothing was stored, so nothing is charged: the hold is refunded in full.
	bal, err := ledger.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal.Balance)
	assert.Equal(t, int64(0), bal.Reserved)

	_, err = docstore.GetTyped[models.SuggestionDoc](ctx, store, models.CollectionSuggestions, job.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestSuggestFailureKeepsPriorCandidates(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{
		suggestResponse(),
		{Error: &llm.ProviderError{Reason: ReasonProviderError, Message: "boom"}},
	}}
	h := newHarness(t, provider)
	ctx := context.Background()

	require.NoError(t, h.ledger.Grant(ctx, "user-1", 1000))
	job := h.completeJob(t, "user-1")

	req := &TaskRequest{UserID: "user-1", TaskType: models.TaskSuggest,
		Context: map[string]any{CtxJobID: job.ID, CtxForceRefresh: true}}
	_, err := h.orch.Run(ctx, req)
	require.NoError(t, err)
	_, err = h.orch.Run(ctx, req)
	require.NoError(t, err)

	doc, err := docstore.GetTyped[models.SuggestionDoc](ctx, h.store, models.CollectionSuggestions, job.ID)
	require.NoError(t, err)
	assert.NotNil(t, doc.LastFailure)
	assert.Contains(t, doc.Candidates, "benefits", "failure never clobbers prior candidates")
}

func TestRunOwnershipAndValidation(t *testing.T) {
	h := newHarness(t, &fakeProvider{})
	ctx := context.Background()

	job := h.completeJob(t, "user-1")

	_, err := h.orch.Run(ctx, &TaskRequest{
		UserID: "user-2", TaskType: models.TaskSuggest,
		Context: map[string]any{CtxJobID: job.ID},
	})
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = h.orch.Run(ctx, &TaskRequest{UserID: "", TaskType: models.TaskSuggest})
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	_, err = h.orch.Run(ctx, &TaskRequest{UserID: "user-1", TaskType: "nonsense"})
	assert.True(t, services.IsValidationError(err))

	_, err = h.orch.Run(ctx, &TaskRequest{UserID: "user-1", TaskType: models.TaskSuggest})
	assert.True(t, services.IsValidationError(err), "missing job id")
}

func TestCompanyIntelRequestIsGrounded(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{{
		Text:  `{"name":"Acme GmbH","profile":{"industry":"software","summary":"Builds tools."}}`,
		Usage: llm.Usage{PromptTokens: 400, CandidatesTokens: 100},
	}}}
	h := newHarness(t, provider)
	ctx := context.Background()

	require.NoError(t, h.ledger.Grant(ctx, "user-1", 1000))

	result, err := h.orch.Run(ctx, &TaskRequest{
		UserID: "user-1", TaskType: models.TaskCompanyIntel,
		Context: map[string]any{CtxCompanyName: "Acme GmbH", CtxLocation: "Berlin"},
	})
	require.NoError(t, err)
	require.Nil(t, result.Failure)

	require.Equal(t, 1, provider.calls())
	req := provider.requests[0]
	assert.True(t, req.HasGroundingTools())
	assert.True(t, req.HasOutputSchema())
	// The gate: this vendor pair would keep structured output; gemini would not.
	assert.True(t, llm.RequestUsesStructuredOutput("fake", &req))
	assert.False(t, llm.RequestUsesStructuredOutput("gemini", &req))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct{ name, in, want string }{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n[1,2]\n```", `[1,2]`},
		{"leading prose", `Here is the result: {"a":1}`, `{"a":1}`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}
