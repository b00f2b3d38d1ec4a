package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBackendStatus is returned when the service answers with a non-200 status.
var ErrBackendStatus = errors.New("backend returned non-200 status")

// Asker sends one question to the chat service and returns its answer.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// StatusError carries the HTTP status of a failed request.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d %s", ErrBackendStatus, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrBackendStatus
}

type chatQuery struct {
	Question string `json:"question"`
}

type chatAnswer struct {
	Answer string `json:"answer"`
}

// ChatRequest is the NATS payload of a chat request.
type ChatRequest struct {
	TraceID  string `json:"trace_id,omitempty"`
	ReqID    string `json:"req_id"`
	Question string `json:"question"`
	ReplyTo  string `json:"reply_to,omitempty"`
}

// ChatResponse is the NATS payload of a chat reply.
type ChatResponse struct {
	ReqID      string `json:"req_id"`
	Answer     string `json:"answer"`
	TokensIn   int    `json:"tokens_in"`
	TokensOut  int    `json:"tokens_out"`
	DurationMs int64  `json:"duration_ms"`
	Cached     bool   `json:"cached,omitempty"`
	Error      string `json:"error,omitempty"`
}

// HealthStatus represents model health information
type HealthStatus struct {
	ModelName    string    `json:"model_name"`
	ModelType    string    `json:"model_type"`
	Status       string    `json:"status"`
	LastActivity time.Time `json:"last_activity"`
	Capabilities []string  `json:"capabilities"`
	Endpoint     string    `json:"endpoint"`
	NATSTopic    string    `json:"nats_topic"`
	Version      string    `json:"version"`
	Uptime       string    `json:"uptime"`
}
