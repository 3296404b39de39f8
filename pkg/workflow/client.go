package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newtube/backend/pkg/queue"
)

// PathPrefix is where workflow endpoints are mounted on the server.
const PathPrefix = "/api/videos/workflows/"

// Enqueuer accepts workflow run jobs.
type Enqueuer interface {
	EnqueueWorkflowRun(ctx context.Context, payload queue.WorkflowRunPayload) (string, error)
}

// Client triggers workflow runs.
type Client struct {
	baseURL string
	queue   Enqueuer
	logger  *zap.Logger
}

// NewClient creates a trigger client; baseURL is where workflow endpoints are reachable.
func NewClient(baseURL string, q Enqueuer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), queue: q, logger: logger}
}

// EndpointURL returns the URL of the named workflow endpoint.
func (c *Client) EndpointURL(name string) string {
	return c.baseURL + PathPrefix + name
}

// Trigger allocates a run id and queues the named workflow with input as its body.
func (c *Client) Trigger(ctx context.Context, name string, input any) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal workflow input: %w", err)
	}
	runID := uuid.NewString()
	payload := queue.WorkflowRunPayload{
		RunID:    runID,
		Workflow: name,
		URL:      c.EndpointURL(name),
		Input:    body,
	}
	if _, err := c.queue.EnqueueWorkflowRun(ctx, payload); err != nil {
		return "", fmt.Errorf("enqueue workflow %s: %w", name, err)
	}
	c.logger.Info("workflow triggered", zap.String("workflow", name), zap.String("run_id", runID))
	return runID, nil
}

// Invoker delivers a queued run to its workflow endpoint.
type Invoker struct {
	httpClient *http.Client
	signer     *Signer
	logger     *zap.Logger
}

// NewInvoker creates an invoker. A nil httpClient uses one with timeout.
func NewInvoker(httpClient *http.Client, signer *Signer, timeout time.Duration, logger *zap.Logger) *Invoker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{httpClient: httpClient, signer: signer, logger: logger}
}

// Invoke POSTs the run input to its endpoint. Any non-2xx answer is an error.
func (i *Invoker) Invoke(ctx context.Context, p queue.WorkflowRunPayload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(p.Input))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRunID, p.RunID)
	if i.signer.Enabled() {
		sig, err := i.signer.Sign(p.RunID, p.Input, time.Now())
		if err != nil {
			return err
		}
		req.Header.Set(HeaderSignature, sig)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call workflow %s: %w", p.Workflow, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("workflow %s returned %d: %s", p.Workflow, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	i.logger.Debug("workflow run delivered", zap.String("workflow", p.Workflow), zap.String("run_id", p.RunID))
	return nil
}
