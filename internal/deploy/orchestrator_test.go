package deploy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	t "miniforge/internal/types"
)

func testOrchestrator(host *httptest.Server) *Orchestrator {
	o := NewOrchestrator(NewBuildHostClient(host.URL, time.Second), NewMemoryDiffStore())
	o.PollInterval = time.Millisecond
	o.MaxPolls = 5
	return o
}

var deployFiles = []t.ProjectFile{
	{Filename: "app/page.tsx", Content: "export default function Page() { return null }\n"},
}

func TestDeploySyncSuccess(tt *testing.T) {
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deploy" {
			tt.Errorf("unexpected path %s", r.URL.Path)
		}
		var req DeployRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			tt.Errorf("decode deploy request: %v", err)
		}
		if req.Hash == "" || len(req.Files) != 1 {
			tt.Errorf("deploy request = %+v", req)
		}
		json.NewEncoder(w).Encode(DeployResponse{Success: true, PreviewURL: "https://preview.test/x"})
	}))
	defer host.Close()

	o := testOrchestrator(host)
	rec, err := o.Deploy(context.Background(), "p1", deployFiles, Options{})
	if err != nil {
		tt.Fatalf("Deploy() error = %v", err)
	}
	if rec.Status != t.DeploymentCompleted || rec.DeploymentURL != "https://preview.test/x" {
		tt.Fatalf("record = %+v", rec)
	}

	// Success retains the shipped file set for rollback.
	files, _, err := o.Rollback(context.Background(), "p1")
	if err != nil {
		tt.Fatalf("Rollback() error = %v", err)
	}
	if len(files) != 1 || files[0].Filename != "app/page.tsx" {
		tt.Fatalf("retained diff = %+v", files)
	}
}

func TestDeployHostReportedFailure(tt *testing.T) {
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(DeployResponse{Success: false, Error: "build exploded", Logs: "stack trace"})
	}))
	defer host.Close()

	o := testOrchestrator(host)
	rec, err := o.Deploy(context.Background(), "p1", deployFiles, Options{})
	if err != nil {
		tt.Fatalf("Deploy() error = %v, host failures are not transport errors", err)
	}
	if rec.Status != t.DeploymentFailed || rec.DeploymentError != "build exploded" || rec.Logs != "stack trace" {
		tt.Fatalf("record = %+v", rec)
	}
	if _, _, err := o.Rollback(context.Background(), "p1"); err != ErrNoDiff {
		tt.Fatalf("Rollback() after failure error = %v, want ErrNoDiff", err)
	}
}

func TestDeployPollsAsyncBuildToCompletion(tt *testing.T) {
	var polls atomic.Int32
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/deploy":
			json.NewEncoder(w).Encode(DeployResponse{Status: "in_progress"})
		case strings.HasPrefix(r.URL.Path, "/deploy/status/"):
			if polls.Add(1) < 3 {
				json.NewEncoder(w).Encode(StatusResponse{Status: "in_progress"})
				return
			}
			json.NewEncoder(w).Encode(StatusResponse{Status: "completed", DeploymentURL: "https://preview.test/done"})
		default:
			tt.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer host.Close()

	o := testOrchestrator(host)
	rec, err := o.Deploy(context.Background(), "p1", deployFiles, Options{})
	if err != nil {
		tt.Fatalf("Deploy() error = %v", err)
	}
	if rec.Status != t.DeploymentCompleted || rec.DeploymentURL != "https://preview.test/done" {
		tt.Fatalf("record = %+v", rec)
	}
	if polls.Load() != 3 {
		tt.Fatalf("status polls = %d, want 3", polls.Load())
	}
}

func TestDeployPollExhaustionIsTerminalTimeout(tt *testing.T) {
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/deploy" {
			json.NewEncoder(w).Encode(DeployResponse{Status: "in_progress"})
			return
		}
		json.NewEncoder(w).Encode(StatusResponse{Status: "in_progress"})
	}))
	defer host.Close()

	o := testOrchestrator(host)
	rec, err := o.Deploy(context.Background(), "p1", deployFiles, Options{})
	if err != nil {
		tt.Fatalf("Deploy() error = %v", err)
	}
	if rec.Status != t.DeploymentFailed {
		tt.Fatalf("record = %+v, want failed after poll cap", rec)
	}
	if !strings.Contains(rec.DeploymentError, "timed out after 5 status polls") {
		tt.Fatalf("error = %q", rec.DeploymentError)
	}
}

func TestDeployContractsFailFast(tt *testing.T) {
	var deployHit atomic.Bool
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/deploy-contracts":
			json.NewEncoder(w).Encode(ContractDeployResponse{Success: false, Error: "compile error"})
		case "/deploy":
			deployHit.Store(true)
			json.NewEncoder(w).Encode(DeployResponse{Success: true})
		}
	}))
	defer host.Close()

	o := testOrchestrator(host)
	rec, err := o.Deploy(context.Background(), "p1", deployFiles, Options{NeedsContracts: true})
	if err != nil {
		tt.Fatalf("Deploy() error = %v", err)
	}
	if rec.Status != t.DeploymentFailed {
		tt.Fatalf("record = %+v", rec)
	}
	if !strings.Contains(rec.DeploymentError, "contract deployment failed") {
		tt.Fatalf("error = %q", rec.DeploymentError)
	}
	if deployHit.Load() {
		tt.Fatalf("file upload ran after contract failure")
	}
}

func TestDeploySubstitutesContractAddresses(tt *testing.T) {
	var uploaded DeployRequest
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/deploy-contracts":
			json.NewEncoder(w).Encode(ContractDeployResponse{
				Success:           true,
				ContractAddresses: map[string]string{"Counter": "0xabc123"},
				Network:           "base-sepolia",
			})
		case "/deploy":
			json.NewDecoder(r.Body).Decode(&uploaded)
			json.NewEncoder(w).Encode(DeployResponse{Success: true, PreviewURL: "https://p"})
		}
	}))
	defer host.Close()

	files := []t.ProjectFile{
		{Filename: "lib/contract.ts", Content: "export const ADDRESS = '{{CONTRACT_ADDRESS:Counter}}'\nexport const OTHER = '{{CONTRACT_ADDRESS:Unknown}}'\n"},
	}
	o := testOrchestrator(host)
	rec, err := o.Deploy(context.Background(), "p1", files, Options{NeedsContracts: true, IsWeb3: true})
	if err != nil {
		tt.Fatalf("Deploy() error = %v", err)
	}
	if rec.Status != t.DeploymentCompleted {
		tt.Fatalf("record = %+v", rec)
	}
	got := uploaded.Files["lib/contract.ts"]
	if !strings.Contains(got, "'0xabc123'") {
		tt.Fatalf("uploaded content = %q, placeholder not substituted", got)
	}
	if !strings.Contains(got, "{{CONTRACT_ADDRESS:Unknown}}") {
		tt.Fatalf("uploaded content = %q, unknown placeholder must stay verbatim", got)
	}
	if rec.ContractAddresses["Counter"] != "0xabc123" {
		tt.Fatalf("record addresses = %+v", rec.ContractAddresses)
	}
}

func TestUpdateFilesSoftFails(tt *testing.T) {
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer host.Close()

	o := testOrchestrator(host)
	o.Records.Put(&t.DeploymentRecord{ProjectID: "p1", Status: t.DeploymentCompleted, DeploymentURL: "https://old"})

	// Must not panic or alter the record on failure.
	o.UpdateFiles(context.Background(), "p1", deployFiles)

	rec, ok := o.Records.Get("p1")
	if !ok || rec.DeploymentURL != "https://old" {
		tt.Fatalf("record = %+v, want untouched", rec)
	}
}

func TestUpdateFilesRefreshesURLOnSuccess(tt *testing.T) {
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/previews" {
			tt.Errorf("unexpected path %s", r.URL.Path)
		}
		var req PreviewUpdateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.ID != "p1" || len(req.Files) != 1 {
			tt.Errorf("update request = %+v", req)
		}
		json.NewEncoder(w).Encode(PreviewUpdateResponse{VercelURL: "https://new"})
	}))
	defer host.Close()

	o := testOrchestrator(host)
	o.Records.Put(&t.DeploymentRecord{ProjectID: "p1", Status: t.DeploymentCompleted, DeploymentURL: "https://old"})

	o.UpdateFiles(context.Background(), "p1", deployFiles)

	rec, _ := o.Records.Get("p1")
	if rec.DeploymentURL != "https://new" {
		tt.Fatalf("record url = %q, want refreshed", rec.DeploymentURL)
	}
}

func TestFileSetHashIsOrderInsensitive(tt *testing.T) {
	a := []t.ProjectFile{{Filename: "a.ts", Content: "1"}, {Filename: "b.ts", Content: "2"}}
	b := []t.ProjectFile{{Filename: "b.ts", Content: "2"}, {Filename: "a.ts", Content: "1"}}
	if fileSetHash("p", a) != fileSetHash("p", b) {
		tt.Fatalf("hash depends on file order")
	}
	if fileSetHash("p", a) == fileSetHash("q", a) {
		tt.Fatalf("hash ignores project id")
	}
}

func TestMemoryDiffStoreLatestWins(tt *testing.T) {
	s := NewMemoryDiffStore()
	ctx := context.Background()
	s.Put(ctx, "p1", []t.ProjectFile{{Filename: "a.ts", Content: "v1"}})
	s.Put(ctx, "p1", []t.ProjectFile{{Filename: "a.ts", Content: "v2"}})

	files, at, err := s.Latest(ctx, "p1")
	if err != nil {
		tt.Fatalf("Latest() error = %v", err)
	}
	if files[0].Content != "v2" || at.IsZero() {
		tt.Fatalf("Latest() = %+v at %v", files, at)
	}
	if _, _, err := s.Latest(ctx, "p2"); err != ErrNoDiff {
		tt.Fatalf("Latest(p2) error = %v", err)
	}
}
