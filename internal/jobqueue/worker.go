package jobqueue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"miniforge/internal/deploy"
	"miniforge/internal/projectstore"
	t "miniforge/internal/types"
)

// PipelineRunner is the generation side of job execution.
type PipelineRunner interface {
	Run(ctx context.Context, prompt string, current []t.ProjectFile) ([]t.GeneratedFile, error)
}

// Deployer is the preview side of job execution.
type Deployer interface {
	Deploy(ctx context.Context, projectID string, files []t.ProjectFile, opts deploy.Options) (*t.DeploymentRecord, error)
}

// Worker claims jobs and runs them to a terminal state. The claim happens in
// the caller's request cycle; the stage chain runs on a detached goroutine so
// claim latency stays bounded regardless of pipeline duration. Completion is
// only observable through the job record.
type Worker struct {
	Store    Store
	Pipeline PipelineRunner
	Deployer Deployer
	Projects projectstore.Store

	DeployOptions deploy.Options
	// Timeout bounds one whole job execution.
	Timeout time.Duration
}

// jobResult is what lands in GenerationJob.Result on success.
type jobResult struct {
	Files         int    `json:"files"`
	DeploymentURL string `json:"deploymentUrl,omitempty"`
	Platform      string `json:"platform,omitempty"`
	ShortCircuit  bool   `json:"shortCircuit,omitempty"`
}

// ClaimAndRun atomically claims a job (a specific id, or the oldest pending
// one when id is empty) and starts execution in the background. It returns
// as soon as the claim settles.
func (w *Worker) ClaimAndRun(ctx context.Context, id string) (t.GenerationJob, ClaimResult, error) {
	job, res, err := w.Store.Claim(ctx, id)
	if err != nil || res != Claimed {
		return job, res, err
	}
	go w.execute(job)
	return job, Claimed, nil
}

func (w *Worker) execute(job t.GenerationJob) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	current, err := w.Projects.Files(ctx, job.ProjectID)
	if err != nil {
		w.fail(ctx, job.ID, "load project files: "+err.Error())
		return
	}

	generated, err := w.Pipeline.Run(ctx, job.Prompt, current)
	if err != nil {
		w.fail(ctx, job.ID, err.Error())
		return
	}

	next := mergeFiles(current, generated)
	shortCircuit := len(generated) == len(current) && equalSets(current, next)
	if err := w.Projects.SaveFiles(ctx, job.ProjectID, next); err != nil {
		w.fail(ctx, job.ID, "save project files: "+err.Error())
		return
	}

	rec, err := w.Deployer.Deploy(ctx, job.ProjectID, next, w.DeployOptions)
	if err != nil {
		w.fail(ctx, job.ID, "deploy: "+err.Error())
		return
	}
	if rec.Status == t.DeploymentFailed {
		w.fail(ctx, job.ID, "deploy: "+rec.DeploymentError)
		return
	}

	result, _ := json.Marshal(jobResult{
		Files:         len(next),
		DeploymentURL: rec.DeploymentURL,
		Platform:      rec.Platform,
		ShortCircuit:  shortCircuit,
	})
	if err := w.Store.Complete(ctx, job.ID, string(result)); err != nil {
		log.Printf("jobqueue: marking %s completed failed: %v", job.ID, err)
	}
}

// ReportDeploymentFailure accepts a failure discovered after the job record
// already says completed, e.g. a preview that died once it went live.
func (w *Worker) ReportDeploymentFailure(ctx context.Context, id, detail string) error {
	return w.Store.ReportFailure(ctx, id, detail)
}

func (w *Worker) fail(ctx context.Context, id, msg string) {
	log.Printf("jobqueue: job %s failed: %s", id, msg)
	if err := w.Store.Fail(ctx, id, msg); err != nil {
		log.Printf("jobqueue: marking %s failed failed: %v", id, err)
	}
}

// mergeFiles overlays generated output on the current set: touched files are
// replaced, untouched files carried over, new files appended.
func mergeFiles(current []t.ProjectFile, generated []t.GeneratedFile) []t.ProjectFile {
	byName := map[string]int{}
	out := make([]t.ProjectFile, len(current))
	copy(out, current)
	for i, f := range out {
		byName[f.Filename] = i
	}
	for _, g := range generated {
		if i, ok := byName[g.Filename]; ok {
			out[i].Content = g.Content
			continue
		}
		byName[g.Filename] = len(out)
		out = append(out, t.ProjectFile{Filename: g.Filename, Content: g.Content})
	}
	return out
}

func equalSets(a, b []t.ProjectFile) bool {
	if len(a) != len(b) {
		return false
	}
	byName := make(map[string]string, len(a))
	for _, f := range a {
		byName[f.Filename] = f.Content
	}
	for _, f := range b {
		if content, ok := byName[f.Filename]; !ok || content != f.Content {
			return false
		}
	}
	return true
}
