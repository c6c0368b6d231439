package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"miniforge/internal/deploy"
	"miniforge/internal/projectstore"
	t "miniforge/internal/types"
)

type stubPipeline struct {
	out []t.GeneratedFile
	err error
}

func (p *stubPipeline) Run(_ context.Context, _ string, _ []t.ProjectFile) ([]t.GeneratedFile, error) {
	return p.out, p.err
}

type stubDeployer struct {
	rec *t.DeploymentRecord
	err error
}

func (d *stubDeployer) Deploy(_ context.Context, projectID string, _ []t.ProjectFile, _ deploy.Options) (*t.DeploymentRecord, error) {
	if d.rec != nil {
		d.rec.ProjectID = projectID
	}
	return d.rec, d.err
}

func testWorker(store Store, p PipelineRunner, d Deployer) (*Worker, *projectstore.MemoryStore) {
	projects := projectstore.NewMemoryStore()
	projects.SaveFiles(context.Background(), "p1", []t.ProjectFile{
		{Filename: "app/page.tsx", Content: "old"},
	})
	return &Worker{
		Store:    store,
		Pipeline: p,
		Deployer: d,
		Projects: projects,
		Timeout:  time.Second,
	}, projects
}

func createAndClaim(tt *testing.T, store Store) t.GenerationJob {
	tt.Helper()
	job := pendingJob("j1", time.Now())
	job.ProjectID = "p1"
	if err := store.Create(context.Background(), job); err != nil {
		tt.Fatalf("Create() error = %v", err)
	}
	claimed, res, err := store.Claim(context.Background(), "j1")
	if err != nil || res != Claimed {
		tt.Fatalf("Claim() = %s, %v", res, err)
	}
	return claimed
}

func TestExecuteCompletesJobAndSavesFiles(tt *testing.T) {
	store := NewMemoryStore()
	pipe := &stubPipeline{out: []t.GeneratedFile{
		{Filename: "app/page.tsx", Content: "new"},
		{Filename: "app/extra.tsx", Content: "added"},
	}}
	dep := &stubDeployer{rec: &t.DeploymentRecord{
		Status:        t.DeploymentCompleted,
		DeploymentURL: "https://preview.test/p1",
		Platform:      "preview",
	}}
	w, projects := testWorker(store, pipe, dep)
	job := createAndClaim(tt, store)

	w.execute(job)

	got, err := store.Get(context.Background(), "j1")
	if err != nil {
		tt.Fatalf("Get() error = %v", err)
	}
	if got.Status != t.JobCompleted {
		tt.Fatalf("job = %+v", got)
	}
	var result struct {
		Files         int    `json:"files"`
		DeploymentURL string `json:"deploymentUrl"`
	}
	if err := json.Unmarshal([]byte(got.Result), &result); err != nil {
		tt.Fatalf("decode result %q: %v", got.Result, err)
	}
	if result.Files != 2 || result.DeploymentURL != "https://preview.test/p1" {
		tt.Fatalf("result = %+v", result)
	}

	files, _ := projects.Files(context.Background(), "p1")
	if len(files) != 2 || files[0].Content != "new" {
		tt.Fatalf("saved files = %+v", files)
	}
}

func TestExecuteFailsJobOnPipelineError(tt *testing.T) {
	store := NewMemoryStore()
	pipe := &stubPipeline{err: errors.New("pipeline: stage g3: model exploded")}
	w, _ := testWorker(store, pipe, &stubDeployer{})
	job := createAndClaim(tt, store)

	w.execute(job)

	got, _ := store.Get(context.Background(), "j1")
	if got.Status != t.JobFailed {
		tt.Fatalf("job = %+v", got)
	}
	if !strings.Contains(got.Error, "stage g3") {
		tt.Fatalf("error = %q", got.Error)
	}
}

func TestExecuteFailsJobOnFailedDeploymentRecord(tt *testing.T) {
	store := NewMemoryStore()
	pipe := &stubPipeline{out: []t.GeneratedFile{{Filename: "app/page.tsx", Content: "new"}}}
	dep := &stubDeployer{rec: &t.DeploymentRecord{
		Status:          t.DeploymentFailed,
		DeploymentError: "build exploded",
	}}
	w, _ := testWorker(store, pipe, dep)
	job := createAndClaim(tt, store)

	w.execute(job)

	got, _ := store.Get(context.Background(), "j1")
	if got.Status != t.JobFailed || !strings.Contains(got.Error, "build exploded") {
		tt.Fatalf("job = %+v", got)
	}
}

func TestExecuteFailsJobOnUnknownProject(tt *testing.T) {
	store := NewMemoryStore()
	w, _ := testWorker(store, &stubPipeline{}, &stubDeployer{})
	job := pendingJob("j2", time.Now())
	job.ProjectID = "missing"
	store.Create(context.Background(), job)
	store.Claim(context.Background(), "j2")

	w.execute(t.GenerationJob{ID: "j2", ProjectID: "missing"})

	got, _ := store.Get(context.Background(), "j2")
	if got.Status != t.JobFailed || !strings.Contains(got.Error, "load project files") {
		tt.Fatalf("job = %+v", got)
	}
}

func TestClaimAndRunLosesRaceGracefully(tt *testing.T) {
	store := NewMemoryStore()
	w, _ := testWorker(store, &stubPipeline{}, &stubDeployer{})
	job := pendingJob("j1", time.Now())
	store.Create(context.Background(), job)
	store.Claim(context.Background(), "j1")

	_, res, err := w.ClaimAndRun(context.Background(), "j1")
	if err != nil {
		tt.Fatalf("ClaimAndRun() error = %v", err)
	}
	if res != ClaimAlreadyClaimed {
		tt.Fatalf("ClaimAndRun() = %s", res)
	}
}

func TestMergeFilesOverlaysGeneratedOutput(tt *testing.T) {
	current := []t.ProjectFile{
		{Filename: "a.ts", Content: "a-old"},
		{Filename: "b.ts", Content: "b-old"},
	}
	generated := []t.GeneratedFile{
		{Filename: "b.ts", Content: "b-new"},
		{Filename: "c.ts", Content: "c-new"},
	}
	got := mergeFiles(current, generated)
	if len(got) != 3 {
		tt.Fatalf("mergeFiles() = %+v", got)
	}
	if got[0].Content != "a-old" || got[1].Content != "b-new" || got[2].Filename != "c.ts" {
		tt.Fatalf("mergeFiles() = %+v", got)
	}
}
