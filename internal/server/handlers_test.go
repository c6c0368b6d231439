package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"miniforge/internal/deploy"
	"miniforge/internal/jobqueue"
	"miniforge/internal/projectstore"
	t "miniforge/internal/types"
)

type okPipeline struct{}

func (okPipeline) Run(_ context.Context, _ string, current []t.ProjectFile) ([]t.GeneratedFile, error) {
	out := make([]t.GeneratedFile, 0, len(current))
	for _, f := range current {
		out = append(out, t.GeneratedFile{Filename: f.Filename, Content: f.Content})
	}
	return out, nil
}

type okDeployer struct{}

func (okDeployer) Deploy(_ context.Context, projectID string, _ []t.ProjectFile, _ deploy.Options) (*t.DeploymentRecord, error) {
	return &t.DeploymentRecord{
		ProjectID:     projectID,
		Status:        t.DeploymentCompleted,
		DeploymentURL: "https://preview.test/" + projectID,
	}, nil
}

func testHandler(tb testing.TB) (*Handler, jobqueue.Store) {
	tb.Helper()
	store := jobqueue.NewMemoryStore()
	projects := projectstore.NewMemoryStore()
	require.NoError(tb, projects.SaveFiles(context.Background(), "p1", []t.ProjectFile{
		{Filename: "app/page.tsx", Content: "export default function Page() { return null }\n"},
	}))
	worker := &jobqueue.Worker{
		Store:    store,
		Pipeline: okPipeline{},
		Deployer: okDeployer{},
		Projects: projects,
		Timeout:  time.Second,
	}
	return NewHandler(store, worker, time.Hour), store
}

func postJSON(tb testing.TB, h http.Handler, path, body string) *httptest.ResponseRecorder {
	tb.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestCreateJobAcceptsAndRuns(tt *testing.T) {
	h, store := testHandler(tt)
	routes := h.Routes()

	rr := postJSON(tt, routes, "/jobs", `{"userId":"u1","projectId":"p1","prompt":"add a counter"}`)
	require.Equal(tt, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp createJobResponse
	require.NoError(tt, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(tt, resp.ID)
	require.Equal(tt, t.JobPending, resp.Status)

	// Execution is fire and forget; the record is the only window into it.
	require.Eventually(tt, func() bool {
		job, err := store.Get(context.Background(), resp.ID)
		return err == nil && job.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	job, err := store.Get(context.Background(), resp.ID)
	require.NoError(tt, err)
	require.Equal(tt, t.JobCompleted, job.Status)
}

func TestCreateJobValidation(tt *testing.T) {
	h, _ := testHandler(tt)
	routes := h.Routes()

	rr := postJSON(tt, routes, "/jobs", `{"userId":"u1","prompt":"   "}`)
	require.Equal(tt, http.StatusBadRequest, rr.Code)

	rr = postJSON(tt, routes, "/jobs", `{"prompt":"do it"}`)
	require.Equal(tt, http.StatusBadRequest, rr.Code)

	rr = postJSON(tt, routes, "/jobs", `{not json`)
	require.Equal(tt, http.StatusBadRequest, rr.Code)
}

func TestGetJob(tt *testing.T) {
	h, store := testHandler(tt)
	routes := h.Routes()

	job := t.GenerationJob{
		ID:        "j1",
		UserID:    "u1",
		Prompt:    "x",
		Status:    t.JobPending,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(tt, store.Create(context.Background(), job))

	req := httptest.NewRequest(http.MethodGet, "/jobs/j1", nil)
	rr := httptest.NewRecorder()
	routes.ServeHTTP(rr, req)
	require.Equal(tt, http.StatusOK, rr.Code)

	var got t.GenerationJob
	require.NoError(tt, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(tt, "j1", got.ID)

	req = httptest.NewRequest(http.MethodGet, "/jobs/nope", nil)
	rr = httptest.NewRecorder()
	routes.ServeHTTP(rr, req)
	require.Equal(tt, http.StatusNotFound, rr.Code)
}

func TestListPendingJobs(tt *testing.T) {
	h, store := testHandler(tt)
	routes := h.Routes()

	now := time.Now()
	for _, id := range []string{"a", "b"} {
		require.NoError(tt, store.Create(context.Background(), t.GenerationJob{
			ID: id, UserID: "u1", Prompt: "x", Status: t.JobPending,
			CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		}))
	}

	req := httptest.NewRequest(http.MethodGet, "/jobs?status=pending", nil)
	rr := httptest.NewRecorder()
	routes.ServeHTTP(rr, req)
	require.Equal(tt, http.StatusOK, rr.Code)

	var got []jobqueue.JobSummary
	require.NoError(tt, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(tt, got, 2)

	req = httptest.NewRequest(http.MethodGet, "/jobs?status=completed", nil)
	rr = httptest.NewRecorder()
	routes.ServeHTTP(rr, req)
	require.Equal(tt, http.StatusBadRequest, rr.Code)
}

func TestReportDeploymentFailure(tt *testing.T) {
	h, store := testHandler(tt)
	routes := h.Routes()

	job := t.GenerationJob{
		ID: "j1", UserID: "u1", Prompt: "x", Status: t.JobPending,
		CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(tt, store.Create(context.Background(), job))
	_, res, err := store.Claim(context.Background(), "j1")
	require.NoError(tt, err)
	require.Equal(tt, jobqueue.Claimed, res)
	require.NoError(tt, store.Complete(context.Background(), "j1", "ok"))

	rr := postJSON(tt, routes, "/jobs/j1/deployment-failure", `{"error":"preview went dark"}`)
	require.Equal(tt, http.StatusNoContent, rr.Code, rr.Body.String())

	got, err := store.Get(context.Background(), "j1")
	require.NoError(tt, err)
	require.Equal(tt, t.JobFailed, got.Status)
	require.Contains(tt, got.Error, "preview went dark")

	rr = postJSON(tt, routes, "/jobs/nope/deployment-failure", `{"error":"x"}`)
	require.Equal(tt, http.StatusNotFound, rr.Code)

	rr = postJSON(tt, routes, "/jobs/j1/deployment-failure", `{"error":""}`)
	require.Equal(tt, http.StatusBadRequest, rr.Code)
}
