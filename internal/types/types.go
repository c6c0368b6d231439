package types

import "time"

// Project files ------------------------------------------------------------------

// ProjectFile is one source file of a generated project. Filename is unique
// within a project's file set; content is opaque text.
type ProjectFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// GeneratedFile is a full-replacement file emitted by the code-generate stage.
type GeneratedFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Validation ---------------------------------------------------------------------

type FindingKind string

const (
	FindingMissingFile      FindingKind = "missing-file"
	FindingMissingImport    FindingKind = "missing-import"
	FindingMissingDirective FindingKind = "missing-directive"
	FindingSyntaxRisk       FindingKind = "syntax-risk"
)

// ValidationFinding is one structural problem in a candidate file set.
// Findings only live for the duration of a pipeline run.
type ValidationFinding struct {
	File    string      `json:"file"`
	Message string      `json:"message"`
	Kind    FindingKind `json:"kind"`
}

// Deployment ---------------------------------------------------------------------

type DeploymentStatus string

const (
	DeploymentPending   DeploymentStatus = "pending"
	DeploymentBuilding  DeploymentStatus = "building"
	DeploymentCompleted DeploymentStatus = "completed"
	DeploymentFailed    DeploymentStatus = "failed"
)

// DeploymentRecord tracks one deploy attempt. Updated in place as the attempt
// advances; completed and failed are terminal.
type DeploymentRecord struct {
	ProjectID         string            `json:"projectId"`
	Platform          string            `json:"platform"`
	DeploymentURL     string            `json:"deploymentUrl,omitempty"`
	Status            DeploymentStatus  `json:"status"`
	DeploymentError   string            `json:"deploymentError,omitempty"`
	Logs              string            `json:"logs,omitempty"`
	ContractAddresses map[string]string `json:"contractAddresses,omitempty"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Jobs ---------------------------------------------------------------------------

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// GenerationJob is one durable pipeline+deploy run. Created pending, claimed
// by exactly one worker (atomic pending->processing), finished by that worker,
// reaped after ExpiresAt by the sweep.
type GenerationJob struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	ProjectID   string     `json:"projectId,omitempty"`
	Prompt      string     `json:"prompt"`
	Context     string     `json:"context,omitempty"`
	Status      JobStatus  `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ExpiresAt   time.Time  `json:"expiresAt"`
}

// Terminal reports whether the job reached a final state.
func (j GenerationJob) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
