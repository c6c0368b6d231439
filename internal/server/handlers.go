package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"miniforge/internal/jobqueue"
	t "miniforge/internal/types"
)

// Handler exposes the job surface: create, read, list pending, watch.
type Handler struct {
	Store  jobqueue.Store
	Worker *jobqueue.Worker
	JobTTL time.Duration
}

func NewHandler(store jobqueue.Store, worker *jobqueue.Worker, ttl time.Duration) *Handler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handler{Store: store, Worker: worker, JobTTL: ttl}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", h.createJob)
	mux.HandleFunc("GET /jobs", h.listJobs)
	mux.HandleFunc("GET /jobs/{id}", h.getJob)
	mux.HandleFunc("GET /jobs/{id}/watch", h.watchJob)
	mux.HandleFunc("POST /jobs/{id}/deployment-failure", h.reportFailure)
	return mux
}

type createJobRequest struct {
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
	Prompt    string `json:"prompt"`
	Context   string `json:"context,omitempty"`
}

type createJobResponse struct {
	ID     string      `json:"id"`
	Status t.JobStatus `json:"status"`
}

// createJob stores a pending job, claims it, and kicks off execution in the
// background. The caller gets the job id immediately; the outcome is only
// observable through the job record.
func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	now := time.Now()
	job := t.GenerationJob{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Prompt:    req.Prompt,
		Context:   req.Context,
		Status:    t.JobPending,
		CreatedAt: now,
		ExpiresAt: now.Add(h.JobTTL),
	}
	if err := h.Store.Create(r.Context(), job); err != nil {
		log.Printf("server: create job: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	if _, res, err := h.Worker.ClaimAndRun(r.Context(), job.ID); err != nil || res != jobqueue.Claimed {
		log.Printf("server: claim %s after create: res=%s err=%v", job.ID, res, err)
	}
	writeJSON(w, http.StatusAccepted, createJobResponse{ID: job.ID, Status: t.JobPending})
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, jobqueue.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("status") != "pending" {
		writeError(w, http.StatusBadRequest, "only status=pending is supported")
		return
	}
	jobs, err := h.Store.ListPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []jobqueue.JobSummary{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

type reportFailureRequest struct {
	Error string `json:"error"`
}

// reportFailure accepts a retroactive deployment failure: a completed job is
// overwritten back to failed with merged detail.
func (h *Handler) reportFailure(w http.ResponseWriter, r *http.Request) {
	var req reportFailureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Error) == "" {
		writeError(w, http.StatusBadRequest, "error detail is required")
		return
	}
	err := h.Worker.ReportDeploymentFailure(r.Context(), r.PathValue("id"), req.Error)
	if errors.Is(err, jobqueue.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
