package temporal

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"github.com/helixir/research-agent-service/internal/domain"
)

// Signal and query names shared by the server and the workflow.
const (
	SignalCancel  = "cancel"
	QueryProgress = "progress"
)

const (
	// DefaultWorkflowExecutionTimeout bounds a whole research run.
	DefaultWorkflowExecutionTimeout = time.Hour
	DefaultHealthCheckTimeout       = 5 * time.Second
)

// TLSConfig holds PEM file locations for a TLS connection to the frontend.
type TLSConfig struct {
	Enabled    bool
	CertPath   string
	KeyPath    string
	CACertPath string
	ServerName string
	// InsecureSkipVerify is for local clusters with self-signed certs only.
	InsecureSkipVerify bool
}

func (t *TLSConfig) buildTLSConfig() (*tls.Config, error) {
	if t == nil || !t.Enabled {
		return nil, nil
	}
	out := &tls.Config{
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec // opt-in for dev clusters
		MinVersion:         tls.VersionTLS12,
	}
	if t.CertPath != "" && t.KeyPath != "" {
		pair, err := tls.LoadX509KeyPair(t.CertPath, t.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		out.Certificates = append(out.Certificates, pair)
	}
	if t.CACertPath == "" {
		return out, nil
	}
	pem, err := os.ReadFile(t.CACertPath)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, errors.New("parse CA certificate: no PEM blocks found")
	}
	out.RootCAs = roots
	return out, nil
}

// ClientConfig describes how to reach the Temporal frontend.
type ClientConfig struct {
	HostPort  string
	Namespace string
	// TaskQueue is where research workflows are started.
	TaskQueue string
	TLS       *TLSConfig
	// Logger receives SDK logs; nil keeps the SDK default.
	Logger             log.Logger
	HealthCheckTimeout time.Duration
}

// NewClient dials the Temporal frontend.
func NewClient(cfg ClientConfig) (client.Client, error) {
	tlsCfg, err := cfg.TLS.buildTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("configure TLS: %w", err)
	}
	c, err := client.Dial(client.Options{
		HostPort:          cfg.HostPort,
		Namespace:         cfg.Namespace,
		Logger:            cfg.Logger,
		ConnectionOptions: client.ConnectionOptions{TLS: tlsCfg},
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal at %s: %w", cfg.HostPort, err)
	}
	return c, nil
}

// ResearchWorkflowInput starts a run. State.ID is the run ID and fixes the
// workflow ID, so a run cannot be started twice.
type ResearchWorkflowInput struct {
	RequestID string
	State     *domain.WorkflowState
}

// ResearchProgress answers the progress query.
type ResearchProgress struct {
	// Status is the run's execution status, or "cancelled".
	Status          string `json:"status"`
	CurrentAgent    string `json:"current_agent"`
	StagesCompleted int    `json:"stages_completed"`
	TotalStages     int    `json:"total_stages"`
	CancelRequested bool   `json:"cancel_requested"`
}

// CancelRequest is the cancel signal payload.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// WorkflowID maps a run ID to its workflow ID.
func WorkflowID(runID uuid.UUID) string {
	return "research-" + runID.String()
}

// ResearchWorkflowClient is the server's view of research workflows: start,
// cancel and progress. It is safe for concurrent use.
type ResearchWorkflowClient struct {
	mu                 sync.RWMutex
	client             client.Client
	taskQueue          string
	healthCheckTimeout time.Duration
	closed             bool
}

func NewResearchWorkflowClient(c client.Client, cfg ClientConfig) *ResearchWorkflowClient {
	rc := &ResearchWorkflowClient{
		client:             c,
		taskQueue:          cfg.TaskQueue,
		healthCheckTimeout: cfg.HealthCheckTimeout,
	}
	if rc.healthCheckTimeout <= 0 {
		rc.healthCheckTimeout = DefaultHealthCheckTimeout
	}
	return rc
}

// Close releases the connection. Repeated calls are no-ops.
func (c *ResearchWorkflowClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.client == nil {
		return
	}
	c.client.Close()
	c.closed = true
}

func (c *ResearchWorkflowClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// guard returns ErrClientClosed for op once Close has been called.
func (c *ResearchWorkflowClient) guard(op, workflowID string) error {
	if !c.isClosed() {
		return nil
	}
	return &TemporalError{Op: op, Kind: ErrClientClosed, WorkflowID: workflowID}
}

// Health pings the frontend within the health check timeout.
func (c *ResearchWorkflowClient) Health(ctx context.Context) error {
	if err := c.guard("Health", ""); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.healthCheckTimeout)
	defer cancel()
	_, err := c.client.CheckHealth(ctx, &client.CheckHealthRequest{})
	return wrapTemporalError("Health", err, "", "")
}

// Start launches workflowFunc for input.State and returns the workflow and
// run IDs assigned by the server.
func (c *ResearchWorkflowClient) Start(ctx context.Context, workflowFunc any, input ResearchWorkflowInput) (string, string, error) {
	if input.State == nil || input.State.ID == uuid.Nil {
		return "", "", &TemporalError{
			Op:   "Start",
			Kind: ErrInvalidArgument,
			Err:  domain.NewValidationError("state", "state with a run ID is required"),
		}
	}
	workflowID := WorkflowID(input.State.ID)
	if err := c.guard("Start", workflowID); err != nil {
		return "", "", err
	}

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultWorkflowExecutionTimeout,
	}, workflowFunc, input)
	if err != nil {
		return "", "", wrapTemporalError("Start", err, workflowID, "")
	}
	return workflowID, run.GetRunID(), nil
}

// Cancel signals the run to stop before its next stage. A run that has
// already finished yields ErrWorkflowAlreadyCompleted.
func (c *ResearchWorkflowClient) Cancel(ctx context.Context, runID uuid.UUID, reason string) error {
	workflowID := WorkflowID(runID)
	if err := c.guard("Cancel", workflowID); err != nil {
		return err
	}
	err := c.client.SignalWorkflow(ctx, workflowID, "", SignalCancel, CancelRequest{Reason: reason})
	return wrapTemporalError("Cancel", err, workflowID, "")
}

// Progress asks a running workflow which stage it is on.
func (c *ResearchWorkflowClient) Progress(ctx context.Context, runID uuid.UUID) (*ResearchProgress, error) {
	workflowID := WorkflowID(runID)
	if err := c.guard("Progress", workflowID); err != nil {
		return nil, err
	}
	resp, err := c.client.QueryWorkflow(ctx, workflowID, "", QueryProgress)
	if err != nil {
		return nil, wrapTemporalError("Progress", err, workflowID, "")
	}
	var progress ResearchProgress
	if err := resp.Get(&progress); err != nil {
		return nil, &TemporalError{
			Op:         "Progress",
			Kind:       ErrQueryFailed,
			WorkflowID: workflowID,
			Err:        fmt.Errorf("decode progress: %w", err),
		}
	}
	return &progress, nil
}
