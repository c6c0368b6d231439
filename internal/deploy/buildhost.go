package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BuildHostClient speaks the preview host's HTTP contract. Transport errors
// come back as errors; host-reported failures come back inside the parsed
// response so callers can record them.
type BuildHostClient struct {
	baseURL string
	hc      *http.Client
}

func NewBuildHostClient(baseURL string, timeout time.Duration) *BuildHostClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &BuildHostClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

// DeployRequest is the full file-set upload.
type DeployRequest struct {
	Hash             string            `json:"hash"`
	Files            map[string]string `json:"files"`
	DeployToExternal bool              `json:"deployToExternal"`
	IsWeb3           bool              `json:"isWeb3"`
	SkipContracts    bool              `json:"skipContracts"`
	Wait             bool              `json:"wait"`
}

type DeployResponse struct {
	Success    bool   `json:"success"`
	PreviewURL string `json:"previewUrl,omitempty"`
	VercelURL  string `json:"vercelUrl,omitempty"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
	Logs       string `json:"logs,omitempty"`
}

type StatusResponse struct {
	Status        string  `json:"status"` // in_progress | completed | failed
	DeploymentURL string  `json:"deploymentUrl,omitempty"`
	Error         string  `json:"error,omitempty"`
	Logs          string  `json:"logs,omitempty"`
	Duration      float64 `json:"duration,omitempty"`
}

type PreviewFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type PreviewUpdateRequest struct {
	ID               string        `json:"id"`
	Files            []PreviewFile `json:"files"`
	Wait             bool          `json:"wait"`
	ValidationResult any           `json:"validationResult,omitempty"`
}

type PreviewUpdateResponse struct {
	VercelURL string `json:"vercelUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ContractDeployRequest struct {
	ProjectID string            `json:"projectId"`
	Files     map[string]string `json:"files"`
}

type ContractDeployResponse struct {
	Success           bool              `json:"success"`
	ContractAddresses map[string]string `json:"contractAddresses"`
	Network           string            `json:"network,omitempty"`
	DeploymentTime    float64           `json:"deploymentTime,omitempty"`
	Error             string            `json:"error,omitempty"`
}

func (c *BuildHostClient) Deploy(ctx context.Context, req DeployRequest) (*DeployResponse, error) {
	var out DeployResponse
	if err := c.post(ctx, "/deploy", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BuildHostClient) Status(ctx context.Context, id string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.get(ctx, "/deploy/status/"+id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BuildHostClient) UpdatePreview(ctx context.Context, req PreviewUpdateRequest) (*PreviewUpdateResponse, error) {
	var out PreviewUpdateResponse
	if err := c.post(ctx, "/previews", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BuildHostClient) DeployContracts(ctx context.Context, req ContractDeployRequest) (*ContractDeployResponse, error) {
	var out ContractDeployResponse
	if err := c.post(ctx, "/deploy-contracts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BuildHostClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("buildhost: encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *BuildHostClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

// do executes the request and decodes the body regardless of status code.
// A non-2xx with a decodable body is a host-reported failure, not a
// transport error; the structured error travels in the response struct.
func (c *BuildHostClient) do(req *http.Request, path string, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("buildhost: %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("buildhost: read %s response: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("buildhost: %s returned %d: %s", path, resp.StatusCode, truncate(string(data), 512))
		}
		return fmt.Errorf("buildhost: decode %s response: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
