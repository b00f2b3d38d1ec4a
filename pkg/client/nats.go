package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

// NATSClient publishes questions to the chat work queue and waits for the
// reply on a per-request subject.
type NATSClient struct {
	conn     *nats.Conn
	model    string
	clientID string
	timeout  time.Duration
}

func NewNATSClient(natsURL, model, clientID string) (*NATSClient, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if clientID == "" {
		clientID = "chat-client"
	}
	return &NATSClient{
		conn:     conn,
		model:    model,
		clientID: clientID,
		timeout:  60 * time.Second,
	}, nil
}

func (c *NATSClient) Ask(ctx context.Context, question string) (string, error) {
	resp, err := c.Chat(ctx, question)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", errors.New(resp.Error)
	}
	return resp.Answer, nil
}

// Chat returns the full reply including token counts.
func (c *NATSClient) Chat(ctx context.Context, question string) (*ChatResponse, error) {
	reqID := ulid.Make().String()
	replySubject := fmt.Sprintf("chat.response.%s.%s", c.clientID, reqID)

	data, err := json.Marshal(ChatRequest{
		ReqID:    reqID,
		Question: question,
		ReplyTo:  replySubject,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Subscribe before publishing so the reply cannot be missed.
	sub, err := c.conn.SubscribeSync(replySubject)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply: %w", err)
	}
	defer sub.Unsubscribe()

	topic := "chat.request." + c.model
	if err := c.conn.Publish(topic, data); err != nil {
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}
	slog.Debug("Published chat request", "topic", topic, "req_id", reqID)

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	msg, err := sub.NextMsgWithContext(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("waiting for reply: %w", err)
	}

	var resp ChatResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// CheckHealth asks the service for its health status.
func (c *NATSClient) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, fmt.Sprintf("models.%s.health", c.model), nil)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	var health HealthStatus
	if err := json.Unmarshal(msg.Data, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	return &health, nil
}

func (c *NATSClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

func (c *NATSClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}
