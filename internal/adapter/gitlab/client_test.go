package gitlab_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/covgate/internal/adapter/gitlab"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *gitlab.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := gitlab.NewClient("42", "glpat-secret")
	client.SetBaseURL(server.URL)
	client.SetPollInterval(5 * time.Millisecond)
	return client
}

func TestLatestCoverage_PicksMostRecentSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/42/repository/commits/abc123/statuses", r.URL.Path)
		assert.Equal(t, "glpat-secret", r.URL.Query().Get("private_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name":"coverage","status":"success","coverage":91.5,"created_at":"2026-01-02T10:00:00Z"},
			{"name":"coverage","status":"success","coverage":88.0,"created_at":"2026-01-01T10:00:00Z"},
			{"name":"lint","status":"success","coverage":null,"created_at":"2026-01-03T10:00:00Z"}
		]`))
	})

	coverage, err := client.LatestCoverage(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, 91.5, coverage)
}

func TestLatestCoverage_StageConfigurable(t *testing.T) {
	var stage atomic.Value
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		stage.Store(r.URL.Query().Get("stage"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"coverage","status":"success","coverage":90.0,"created_at":"2026-01-01T10:00:00Z"}]`))
	})

	_, err := client.LatestCoverage(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "coverage", stage.Load())

	client.SetStage("verify")
	_, err = client.LatestCoverage(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "verify", stage.Load())
}

func TestLatestCoverage_PollsWhilePrerequisiteRuns(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			_, _ = w.Write([]byte(`[{"name":"test-suite","status":"running","coverage":null,"created_at":"2026-01-01T10:00:00Z"}]`))
			return
		}
		_, _ = w.Write([]byte(`[{"name":"coverage","status":"success","coverage":77.7,"created_at":"2026-01-01T10:05:00Z"}]`))
	})

	coverage, err := client.LatestCoverage(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, 77.7, coverage)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestLatestCoverage_AllJobsFailed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"coverage","status":"failed","coverage":null,"created_at":"2026-01-01T10:00:00Z"}]`))
	})

	_, err := client.LatestCoverage(context.Background(), "abc123")
	assert.ErrorIs(t, err, gitlab.ErrNoSuccessfulJobs)
}

func TestLatestCoverage_NoJobs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.LatestCoverage(context.Background(), "abc123")
	assert.ErrorIs(t, err, gitlab.ErrNoJobs)
}

func TestLatestCoverage_AuthErrorPropagates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "401 Unauthorized", http.StatusUnauthorized)
	})

	_, err := client.LatestCoverage(context.Background(), "abc123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, gitlab.ErrNoJobs)
}

func TestLatestCoverage_ContextCancelsPolling(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"test-suite","status":"running","coverage":null,"created_at":"2026-01-01T10:00:00Z"}]`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.LatestCoverage(ctx, "abc123")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTargetBranch_Found(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/42/merge_requests", r.URL.Path)
		assert.Equal(t, "feature/gate", r.URL.Query().Get("source_branch"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"target_branch":"develop"}]`))
	})

	target, ok, err := client.TargetBranch(context.Background(), "feature/gate")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "develop", target)
}

func TestTargetBranch_NoMergeRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	_, ok, err := client.TargetBranch(context.Background(), "feature/gate")
	require.NoError(t, err)
	assert.False(t, ok)
}
