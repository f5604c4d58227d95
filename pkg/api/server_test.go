package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepilot/hirepilot/pkg/company"
	"github.com/hirepilot/hirepilot/pkg/config"
	"github.com/hirepilot/hirepilot/pkg/credits"
	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/llm"
	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/orchestrator"
	"github.com/hirepilot/hirepilot/pkg/prompt"
	"github.com/hirepilot/hirepilot/pkg/services"
	"github.com/hirepilot/hirepilot/pkg/video"
)

// fakeProvider replays scripted responses for the task gateway tests.
type fakeProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	requests  []llm.Request
}

func (f *fakeProvider) Vendor() string { return "fake" }

func (f *fakeProvider) Invoke(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return &llm.Response{Text: "ok"}, nil
}

type apiHarness struct {
	server   *Server
	store    *docstore.MemoryStore
	ledger   *credits.Ledger
	jobs     *services.JobService
	videos   *services.VideoService
	provider *fakeProvider
}

func newAPIHarness(t *testing.T, provider *fakeProvider) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := docstore.NewMemoryStore()
	registry := llm.NewRegistry()
	registry.RegisterText(provider)
	ledger := credits.NewLedger(store, credits.DefaultRates())
	jobs := services.NewJobService(store)
	chats := services.NewChatService(store)
	videos := services.NewVideoService(store)
	companies := company.NewLoader(store)
	cfg := &config.Config{
		HTTPPort: "8080",
		AuthTokens: map[string]string{
			"token-1": "user-1",
			"token-2": "user-2",
		},
		ChatProvider:        "fake:chat-1",
		VideoProvider:       "fake:veo-1",
		MaxAgentTurns:       4,
		TextTimeout:         5 * time.Second,
		VideoSegmentTimeout: time.Minute,
		MaxRenderSeconds:    120,
	}
	engine := orchestrator.NewEngine(prompt.NewRegistry(), registry, ledger, cfg)
	orch := orchestrator.New(engine, store, jobs, chats, companies)
	orch.SetVideoRunner(video.NewPipeline(engine, store, jobs, videos))
	return &apiHarness{
		server:   NewServer(cfg, orch, jobs, chats, videos, ledger),
		store:    store,
		ledger:   ledger,
		jobs:     jobs,
		videos:   videos,
		provider: provider,
	}
}

func (h *apiHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (h *apiHarness) completeJob(t *testing.T, userID string) *models.Job {
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

func TestHealthzIsOpen(t *testing.T) {
	h := newAPIHarness(t, &fakeProvider{})
	w := h.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeBody(t, w)["status"])
}

func TestBearerAuthRequired(t *testing.T) {
	h := newAPIHarness(t, &fakeProvider{})

	w := h.do(t, http.MethodGet, "/api/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodGet, "/api/jobs", "wrong-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodGet, "/api/jobs", "token-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJobLifecycle(t *testing.T) {
	h := newAPIHarness(t, &fakeProvider{})

	w := h.do(t, http.MethodPost, "/api/jobs", "token-1", gin.H{
		"fields": gin.H{"roleTitle": "Backend Engineer"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody(t, w)
	jobID, _ := created["id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "in_progress", created["status"])

	w = h.do(t, http.MethodPatch, "/api/jobs/"+jobID+"/fields", "token-1", gin.H{
		"deltas": gin.H{
			"companyName":    "Acme GmbH",
			"location":       "Berlin",
			"seniorityLevel": "senior",
			"employmentType": "full_time",
			"jobDescription": "Build the ledger service.",
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	patched := decodeBody(t, w)
	assert.Equal(t, "ready", patched["status"])

	// Unknown fields are rejected.
	w = h.do(t, http.MethodPatch, "/api/jobs/"+jobID+"/fields", "token-1", gin.H{
		"deltas": gin.H{"favoriteColor": "green"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The other user's token can neither read nor edit the job.
	w = h.do(t, http.MethodGet, "/api/jobs/"+jobID, "token-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodPost, "/api/jobs/"+jobID+"/archive", "token-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["archived"])

	w = h.do(t, http.MethodGet, "/api/jobs", "token-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	jobs, _ := decodeBody(t, w)["jobs"].([]any)
	assert.Empty(t, jobs, "archived jobs leave the listing")
}

func TestLLMTaskSuggestFlow(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{{
		Parsed: map[string]any{
			"suggestions": []any{
				map[string]any{
					"fieldId":    "benefits",
					"proposal":   "30 days PTO",
					"rationale":  "competitive in Berlin",
					"confidence": 0.9,
				},
			},
		},
		Usage: llm.Usage{PromptTokens: 600, CandidatesTokens: 400},
	}}}
	h := newAPIHarness(t, provider)
	require.NoError(t, h.ledger.Grant(context.Background(), "user-1", 1000))
	job := h.completeJob(t, "user-1")

	w := h.do(t, http.MethodPost, "/api/llm", "token-1", gin.H{
		"taskType": "suggest",
		"context":  gin.H{"jobId": job.ID},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, job.ID, body["jobId"])
	assert.Equal(t, true, body["refreshed"])
	assert.Equal(t, float64(1), body["creditsUsed"])
	suggestions, _ := body["suggestions"].([]any)
	require.Len(t, suggestions, 1)

	w = h.do(t, http.MethodGet, "/api/credits", "token-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	balance := decodeBody(t, w)
	assert.Equal(t, float64(999), balance["balance"])
	assert.Equal(t, float64(0), balance["reserved"])
	assert.Equal(t, float64(1), balance["lifetimeUsed"])
}

func TestLLMTaskErrorsMapToStatusCodes(t *testing.T) {
	h := newAPIHarness(t, &fakeProvider{})

	// Unknown task type.
	w := h.do(t, http.MethodPost, "/api/llm", "token-1", gin.H{
		"taskType": "nonsense",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing body field.
	w = h.do(t, http.MethodPost, "/api/llm", "token-1", gin.H{"context": gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Complete job but no credits: the provider is never reached.
	job := h.completeJob(t, "user-1")
	w = h.do(t, http.MethodPost, "/api/llm", "token-1", gin.H{
		"taskType": "suggest",
		"context":  gin.H{"jobId": job.ID},
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, h.provider.requests)

	// Refine before the required fields are complete.
	draft, err := h.jobs.Create(context.Background(), "user-1", models.JobIntake{RoleTitle: "Engineer"})
	require.NoError(t, err)
	require.NoError(t, h.ledger.Grant(context.Background(), "user-1", 1000))
	w = h.do(t, http.MethodPost, "/api/llm", "token-1", gin.H{
		"taskType": "refine",
		"context":  gin.H{"jobId": draft.ID},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVideoApprovePublishTransitions(t *testing.T) {
	h := newAPIHarness(t, &fakeProvider{})
	ctx := context.Background()
	job := h.completeJob(t, "user-1")

	item, err := h.videos.Create(ctx, "user-1", job.ID, "tiktok")
	require.NoError(t, err)
	_, err = h.videos.Transition(ctx, item.ID, models.VideoStatusGenerating, nil)
	require.NoError(t, err)
	_, err = h.videos.Transition(ctx, item.ID, models.VideoStatusReady, nil)
	require.NoError(t, err)

	w := h.do(t, http.MethodPost, "/api/videos/"+item.ID+"/approve", "token-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", decodeBody(t, w)["status"])

	w = h.do(t, http.MethodPost, "/api/videos/"+item.ID+"/publish", "token-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "published", decodeBody(t, w)["status"])

	// Published is terminal for approval.
	w = h.do(t, http.MethodPost, "/api/videos/"+item.ID+"/approve", "token-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Ownership is enforced before the transition.
	w = h.do(t, http.MethodPost, "/api/videos/"+item.ID+"/publish", "token-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVideoListRequiresJobID(t *testing.T) {
	h := newAPIHarness(t, &fakeProvider{})

	w := h.do(t, http.MethodGet, "/api/videos", "token-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, "/api/videos?jobId=nope", "token-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	videos, ok := decodeBody(t, w)["videos"].([]any)
	require.True(t, ok, "empty result is an array, not null")
	assert.Empty(t, videos)
}

func TestBulkVideosPlansPerChannel(t *testing.T) {
	storyboard := &llm.Response{
		Parsed: map[string]any{"shots": []any{
			map[string]any{"phase": "hook", "visual": "office", "durationSeconds": 3.0},
			map[string]any{"phase": "middle", "visual": "desk", "durationSeconds": 3.0},
			map[string]any{"phase": "cta", "visual": "apply", "durationSeconds": 2.0},
		}},
		Usage: llm.Usage{PromptTokens: 600, CandidatesTokens: 400},
	}
	compliance := &llm.Response{
		Parsed: map[string]any{"flags": []any{}, "checklist": []any{"review claims"}},
		Usage:  llm.Usage{PromptTokens: 300, CandidatesTokens: 200},
	}
	caption := &llm.Response{
		Parsed: map[string]any{"text": "We are hiring.", "hashtags": []any{"#hiring"}},
		Usage:  llm.Usage{PromptTokens: 300, CandidatesTokens: 200},
	}
	provider := &fakeProvider{responses: []*llm.Response{
		storyboard, compliance, caption,
		storyboard, compliance, caption,
	}}
	h := newAPIHarness(t, provider)
	require.NoError(t, h.ledger.Grant(context.Background(), "user-1", 1000))
	job := h.completeJob(t, "user-1")

	w := h.do(t, http.MethodPost, "/api/videos/bulk", "token-1", gin.H{
		"jobId":      job.ID,
		"channelIds": []string{"tiktok", "instagram_reels"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, job.ID, body["jobId"])
	results, _ := body["results"].([]any)
	require.Len(t, results, 2)
	for _, entry := range results {
		m := entry.(map[string]any)
		assert.NotEmpty(t, m["videoId"])
		assert.Equal(t, "planned", m["status"])
	}

	items, err := h.videos.ListByJob(context.Background(), "user-1", job.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestChatHistoryEndpoint(t *testing.T) {
	h := newAPIHarness(t, &fakeProvider{})
	job := h.completeJob(t, "user-1")

	w := h.do(t, http.MethodGet, "/api/copilot/chat", "token-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, "/api/copilot/chat?jobId="+job.ID, "token-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, job.ID, decodeBody(t, w)["jobId"])

	w = h.do(t, http.MethodGet, "/api/copilot/chat?jobId="+job.ID, "token-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
