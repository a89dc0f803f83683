// Package oversight defines the contract with the external human-approval
// service. The core submits requests here and receives resolutions
// asynchronously through the callback endpoint.
package oversight

import (
	"time"

	"tradewarden/internal/logger"
	"tradewarden/internal/uuid"
)

// SubmitInput describes one approval request to the external service.
type SubmitInput struct {
	RequestID   string
	Severity    string // low, medium, high, critical
	Title       string
	Description string
	Payload     map[string]any
	Approvers   []string
	Timeout     time.Duration
}

// Decision is the outcome delivered by the oversight callback.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Valid reports whether the decision is recognized.
func (d Decision) Valid() bool { return d == DecisionApproved || d == DecisionRejected }

// Client submits approval requests to the oversight service.
type Client interface {
	// SubmitRequest registers the request and returns the external
	// request id assigned by the oversight service.
	SubmitRequest(in SubmitInput) (string, error)
}

// logClient is a stand-in Client that logs submissions and assigns ids
// locally. Resolution still flows through the normal callback endpoint.
type logClient struct{}

// NewLogClient creates a logging stub oversight client.
func NewLogClient() Client {
	return &logClient{}
}

func (c *logClient) SubmitRequest(in SubmitInput) (string, error) {
	externalID := uuid.New()
	logger.Get().Infow("oversight request submitted",
		"request_id", in.RequestID,
		"external_id", externalID,
		"severity", in.Severity,
		"title", in.Title,
		"timeout", in.Timeout.String(),
	)
	return externalID, nil
}
