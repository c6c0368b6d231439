package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	t "miniforge/internal/types"
)

// Options controls one deploy attempt.
type Options struct {
	NeedsContracts   bool
	SkipContracts    bool
	IsWeb3           bool
	DeployToExternal bool
	Wait             bool
	Platform         string
}

// Orchestrator ships a finalized file set to the build host: contracts first
// when required, then the full file upload, then sync or polled async
// completion. It owns the per-project record store and the diff retention
// store.
type Orchestrator struct {
	Client  *BuildHostClient
	Records *RecordStore
	Diffs   DiffStore

	PollInterval time.Duration
	MaxPolls     int
}

func NewOrchestrator(client *BuildHostClient, diffs DiffStore) *Orchestrator {
	return &Orchestrator{
		Client:       client,
		Records:      NewRecordStore(),
		Diffs:        diffs,
		PollInterval: 5 * time.Second,
		MaxPolls:     60,
	}
}

// Deploy runs the full state machine:
// pending -> (contracts-deploying) -> building -> completed|failed.
// Transport errors propagate; failures reported by the host land in the
// returned record instead.
func (o *Orchestrator) Deploy(ctx context.Context, projectID string, files []t.ProjectFile, opts Options) (*t.DeploymentRecord, error) {
	rec := &t.DeploymentRecord{
		ProjectID: projectID,
		Platform:  platform(opts),
		Status:    t.DeploymentPending,
	}
	o.Records.Put(rec)

	if opts.NeedsContracts && !opts.SkipContracts {
		addrs, err := o.deployContracts(ctx, projectID, files, rec)
		if err != nil {
			// Fail fast: never upload an app referencing undeployed
			// contract addresses.
			return rec, err
		}
		if rec.Status == t.DeploymentFailed {
			return rec, nil
		}
		files = SubstituteAddresses(files, addrs)
		rec.ContractAddresses = addrs
	}

	hash := fileSetHash(projectID, files)
	resp, err := o.Client.Deploy(ctx, DeployRequest{
		Hash:             hash,
		Files:            asFileMap(files),
		DeployToExternal: opts.DeployToExternal,
		IsWeb3:           opts.IsWeb3,
		SkipContracts:    !opts.NeedsContracts || opts.SkipContracts,
		Wait:             opts.Wait,
	})
	if err != nil {
		o.fail(rec, err.Error(), "")
		return rec, err
	}

	switch {
	case resp.Status == "in_progress":
		rec.Status = t.DeploymentBuilding
		o.Records.Put(rec)
		o.poll(ctx, hash, rec)
	case resp.Success:
		o.complete(rec, firstNonEmpty(resp.PreviewURL, resp.VercelURL))
	default:
		o.fail(rec, firstNonEmpty(resp.Error, "build host reported failure"), resp.Logs)
	}

	if o.Diffs != nil && rec.Status == t.DeploymentCompleted {
		if err := o.Diffs.Put(ctx, projectID, files); err != nil {
			log.Printf("deploy: diff retention for %s failed: %v", projectID, err)
		}
	}
	return rec, nil
}

// UpdateFiles pushes only changed files to an existing deployment. The file
// store is already the source of truth by the time this runs, so a failed
// preview push is logged and swallowed, never thrown.
func (o *Orchestrator) UpdateFiles(ctx context.Context, projectID string, changed []t.ProjectFile) {
	if len(changed) == 0 {
		return
	}
	previews := make([]PreviewFile, 0, len(changed))
	for _, f := range changed {
		previews = append(previews, PreviewFile{Path: f.Filename, Content: f.Content})
	}
	resp, err := o.Client.UpdatePreview(ctx, PreviewUpdateRequest{
		ID:    projectID,
		Files: previews,
		Wait:  false,
	})
	if err != nil {
		log.Printf("deploy: incremental update for %s failed: %v", projectID, err)
		return
	}
	if resp.Error != "" {
		log.Printf("deploy: incremental update for %s rejected: %s", projectID, resp.Error)
		return
	}
	if resp.VercelURL != "" {
		o.Records.Update(projectID, func(rec *t.DeploymentRecord) {
			rec.DeploymentURL = resp.VercelURL
		})
	}
}

// Rollback returns the most recently retained file set for a project.
func (o *Orchestrator) Rollback(ctx context.Context, projectID string) ([]t.ProjectFile, time.Time, error) {
	if o.Diffs == nil {
		return nil, time.Time{}, ErrNoDiff
	}
	return o.Diffs.Latest(ctx, projectID)
}

func (o *Orchestrator) deployContracts(ctx context.Context, projectID string, files []t.ProjectFile, rec *t.DeploymentRecord) (map[string]string, error) {
	resp, err := o.Client.DeployContracts(ctx, ContractDeployRequest{
		ProjectID: projectID,
		Files:     asFileMap(files),
	})
	if err != nil {
		o.fail(rec, "contract deployment failed: "+err.Error(), "")
		return nil, err
	}
	if !resp.Success {
		o.fail(rec, "contract deployment failed: "+firstNonEmpty(resp.Error, "unknown error"), "")
		return nil, nil
	}
	log.Printf("deploy: %d contracts live on %s for %s", len(resp.ContractAddresses), resp.Network, projectID)
	return resp.ContractAddresses, nil
}

// poll tracks an asynchronous build at a fixed interval up to MaxPolls
// attempts. Exhausting the cap is a terminal failure with a timeout error;
// this loop never runs unbounded.
func (o *Orchestrator) poll(ctx context.Context, id string, rec *t.DeploymentRecord) {
	interval := o.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	max := o.MaxPolls
	if max <= 0 {
		max = 60
	}

	for attempt := 1; attempt <= max; attempt++ {
		select {
		case <-ctx.Done():
			o.fail(rec, "deployment polling canceled: "+ctx.Err().Error(), "")
			return
		case <-time.After(interval):
		}

		status, err := o.Client.Status(ctx, id)
		if err != nil {
			log.Printf("deploy: status poll %d/%d for %s failed: %v", attempt, max, rec.ProjectID, err)
			continue
		}
		switch status.Status {
		case "completed":
			o.complete(rec, status.DeploymentURL)
			return
		case "failed":
			o.fail(rec, firstNonEmpty(status.Error, "build failed"), status.Logs)
			return
		default:
			// still in progress
		}
	}
	o.fail(rec, fmt.Sprintf("deployment timed out after %d status polls", max), "")
}

func (o *Orchestrator) complete(rec *t.DeploymentRecord, url string) {
	rec.Status = t.DeploymentCompleted
	rec.DeploymentURL = url
	o.Records.Put(rec)
	log.Printf("deploy: %s completed at %s", rec.ProjectID, url)
}

func (o *Orchestrator) fail(rec *t.DeploymentRecord, msg, logs string) {
	rec.Status = t.DeploymentFailed
	rec.DeploymentError = msg
	rec.Logs = logs
	o.Records.Put(rec)
	log.Printf("deploy: %s failed: %s", rec.ProjectID, msg)
}

// SubstituteAddresses replaces {{CONTRACT_ADDRESS:Name}} placeholder tokens
// with the just-deployed addresses. Nothing else in the content changes.
func SubstituteAddresses(files []t.ProjectFile, addrs map[string]string) []t.ProjectFile {
	if len(addrs) == 0 {
		return files
	}
	out := make([]t.ProjectFile, len(files))
	for i, f := range files {
		content := f.Content
		for name, addr := range addrs {
			content = strings.ReplaceAll(content, "{{CONTRACT_ADDRESS:"+name+"}}", addr)
		}
		out[i] = t.ProjectFile{Filename: f.Filename, Content: content}
	}
	return out
}

func asFileMap(files []t.ProjectFile) map[string]string {
	m := make(map[string]string, len(files))
	for _, f := range files {
		m[f.Filename] = f.Content
	}
	return m
}

// fileSetHash derives the deploy id from the project and its content so
// retries of an identical set land on the same host-side build.
func fileSetHash(projectID string, files []t.ProjectFile) string {
	names := make([]string, 0, len(files))
	byName := make(map[string]string, len(files))
	for _, f := range files {
		names = append(names, f.Filename)
		byName[f.Filename] = f.Content
	}
	sort.Strings(names)
	h := sha256.New()
	h.Write([]byte(projectID))
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte(byName[name]))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func platform(opts Options) string {
	if opts.Platform != "" {
		return opts.Platform
	}
	if opts.DeployToExternal {
		return "vercel"
	}
	return "preview"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
