// Package client is a Go SDK for the workflowd control server: one method
// per RPC operation, reached over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to one workflowd instance.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New returns a Client pointed at baseURL (e.g. "http://127.0.0.1:8787").
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError mirrors the server's error envelope, letting callers (e.g.
// workflowctl) recover the machine-readable code its exit codes are keyed
// on.
type APIError struct {
	ErrCode string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.ErrCode, e.Message) }

// Code returns the machine-readable error code.
func (e *APIError) Code() string { return e.ErrCode }

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if jsonErr := json.Unmarshal(respBody, &apiErr); jsonErr == nil && apiErr.ErrCode != "" {
			return &apiErr
		}
		return fmt.Errorf("workflowd returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

// Healthy reports whether the daemon answers /healthz.
func (c *Client) Healthy(ctx context.Context) bool {
	err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err == nil
}

// LoadWorkflowResult is the reply to LoadWorkflow.
type LoadWorkflowResult struct {
	Reconnected bool `json:"reconnected"`
}

// LoadWorkflow implements load_workflow(path, inventory).
func (c *Client) LoadWorkflow(ctx context.Context, path, inventory string) (LoadWorkflowResult, error) {
	var out LoadWorkflowResult
	err := c.do(ctx, http.MethodPost, "/rpc/load_workflow", map[string]string{
		"path": path, "inventory": inventory,
	}, &out)
	return out, err
}

// RunParams mirrors run(start, end, verify_only).
type RunParams struct {
	Start      string   `json:"start,omitempty"`
	End        string   `json:"end,omitempty"`
	VerifyOnly bool     `json:"verify_only,omitempty"`
	Filter     []string `json:"filter,omitempty"`
	Skip       []string `json:"skip,omitempty"`
}

// Run implements run(start, end, verify_only).
func (c *Client) Run(ctx context.Context, p RunParams) error {
	return c.do(ctx, http.MethodPost, "/rpc/run", p, nil)
}

// Stop implements stop(mode).
func (c *Client) Stop(ctx context.Context, mode string) error {
	return c.do(ctx, http.MethodPost, "/rpc/stop", map[string]string{"mode": mode}, nil)
}

// NodeRecord mirrors internal/engine.NodeRecord's wire shape.
type NodeRecord struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Skipped     bool   `json:"skipped"`
	StartedAt   *int64 `json:"started_at,omitempty"`
	EndedAt     *int64 `json:"ended_at,omitempty"`
}

// StatusResult mirrors internal/engine.StatusSnapshot's wire shape.
type StatusResult struct {
	WorkflowStatus string       `json:"workflow_status"`
	Nodes          []NodeRecord `json:"nodes"`
}

// Status implements status().
func (c *Client) Status(ctx context.Context) (StatusResult, error) {
	var out StatusResult
	err := c.do(ctx, http.MethodGet, "/rpc/status", nil, &out)
	return out, err
}

// Edge mirrors domain.Edge's wire shape.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph implements graph().
func (c *Client) Graph(ctx context.Context) ([]Edge, error) {
	var out []Edge
	err := c.do(ctx, http.MethodGet, "/rpc/graph", nil, &out)
	return out, err
}

// InputData implements input_data().
func (c *Client) InputData(ctx context.Context) (any, error) {
	var out any
	err := c.do(ctx, http.MethodGet, "/rpc/input_data", nil, &out)
	return out, err
}

// NodeDetails implements node_details(id).
func (c *Client) NodeDetails(ctx context.Context, id string) (NodeRecord, error) {
	var out NodeRecord
	err := c.do(ctx, http.MethodGet, "/rpc/nodes/"+id, nil, &out)
	return out, err
}

// TailStdout implements tail_stdout(id, offset), returning (new_content, new_offset).
func (c *Client) TailStdout(ctx context.Context, id string, offset int64) (string, int64, error) {
	var out struct {
		Content   string `json:"content"`
		NewOffset int64  `json:"new_offset"`
	}
	path := fmt.Sprintf("/rpc/nodes/%s/stdout?offset=%d", id, offset)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Content, out.NewOffset, err
}

// RestartNode implements restart_node(id).
func (c *Client) RestartNode(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/rpc/restart_node", map[string]string{"id": id}, nil)
}

// SkipNode implements skip_node(id).
func (c *Client) SkipNode(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/rpc/skip_node", map[string]string{"id": id}, nil)
}

// RequestShutdown implements the one-way request_shutdown().
func (c *Client) RequestShutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/rpc/request_shutdown", nil, nil)
}

// DrawGraph fetches the rendered (mermaid/ascii) swimlane-grouped graph.
func (c *Client) DrawGraph(ctx context.Context, format string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/rpc/graph/render?format="+format, nil)
	if err != nil {
		return "", err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("workflowd returned status %d: %s", resp.StatusCode, string(body))
	}
	return string(body), nil
}
