package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/edubot/internal/config"
)

// generateWorkerID creates a unique worker ID using timestamp and random bytes
func generateWorkerID() string {
	timestamp := time.Now().UnixNano()
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)
	return fmt.Sprintf("worker-%d-%s", timestamp, hex.EncodeToString(randomBytes))
}

// Answerer is implemented by ChatService.
type Answerer interface {
	Answer(ctx context.Context, req ChatRequest, source string, workerID string) (*ChatResponse, error)
}

type NATSService struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	chat       Answerer
	cfg        *config.Config
	monitoring *MonitoringService
}

func NewNATSService(cfg *config.Config, chat Answerer) (*NATSService, error) {
	conn, err := nats.Connect(cfg.NatsURL, nats.Name("edubot-"+cfg.ModelName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSService{
		conn:       conn,
		js:         js,
		chat:       chat,
		cfg:        cfg,
		monitoring: NewMonitoringService(conn, cfg),
	}, nil
}

func (s *NATSService) Start(ctx context.Context) error {
	if err := s.ensureStream(); err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	consumer, err := s.createConsumer()
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	slog.Info("NATS service starting",
		"stream", s.cfg.Stream,
		"subject", s.cfg.Subject,
		"consumer", s.cfg.Durable,
		"concurrency", s.cfg.Concurrency)

	go s.monitoring.Start(ctx)

	for i := 0; i < s.cfg.Concurrency; i++ {
		go s.worker(ctx, consumer, generateWorkerID())
	}

	<-ctx.Done()
	slog.Info("NATS service shutting down")
	s.conn.Drain()
	return nil
}

func (s *NATSService) ensureStream() error {
	streamInfo, err := s.js.StreamInfo(s.cfg.Stream)
	if err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("failed to get stream info: %w", err)
		}
		_, err = s.js.AddStream(&nats.StreamConfig{
			Name:      s.cfg.Stream,
			Subjects:  []string{s.cfg.Subject},
			MaxMsgs:   int64(s.cfg.MaxMsgs),
			MaxAge:    s.cfg.MaxAge,
			Storage:   nats.FileStorage,
			Retention: nats.WorkQueuePolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		slog.Info("Created NATS stream", "name", s.cfg.Stream)
		return nil
	}

	for _, subject := range streamInfo.Config.Subjects {
		if subject == s.cfg.Subject {
			slog.Info("NATS stream already exists", "name", s.cfg.Stream, "messages", streamInfo.State.Msgs)
			return nil
		}
	}

	newConfig := streamInfo.Config
	newConfig.Subjects = append(newConfig.Subjects, s.cfg.Subject)
	if _, err := s.js.UpdateStream(&newConfig); err != nil {
		return fmt.Errorf("failed to update stream with new subject: %w", err)
	}
	slog.Info("Updated NATS stream with new subject", "name", s.cfg.Stream, "subject", s.cfg.Subject)
	return nil
}

func (s *NATSService) createConsumer() (*nats.Subscription, error) {
	sub, err := s.js.PullSubscribe(s.cfg.Subject, s.cfg.Durable,
		nats.ManualAck(),
		nats.AckWait(s.cfg.AckWait),
		nats.MaxDeliver(s.cfg.MaxDeliver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull consumer: %w", err)
	}

	slog.Info("Created NATS consumer", "durable", s.cfg.Durable)
	return sub, nil
}

func (s *NATSService) worker(ctx context.Context, consumer *nats.Subscription, workerID string) {
	slog.Info("NATS worker starting", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("NATS worker shutting down", "worker_id", workerID)
			return
		default:
			msgs, err := consumer.Fetch(1, nats.MaxWait(time.Second))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				slog.Error("Failed to fetch messages", "worker_id", workerID, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for _, msg := range msgs {
				s.monitoring.IncrementPending()
				s.processMessage(ctx, msg, workerID)
				s.monitoring.DecrementPending()
			}
		}
	}
}

func (s *NATSService) processMessage(ctx context.Context, msg *nats.Msg, workerID string) {
	s.monitoring.IncrementActive()
	defer s.monitoring.DecrementActive()

	start := time.Now()

	var req ChatRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Error("Failed to parse chat request",
			"worker_id", workerID,
			"error", err,
			"data", string(msg.Data))
		// Redelivery cannot fix a malformed payload.
		msg.Term()
		return
	}

	if req.TraceID == "" {
		req.TraceID = req.ReqID
	}

	slog.Debug("Processing NATS chat request",
		"worker_id", workerID,
		"req_id", req.ReqID,
		"trace_id", req.TraceID,
		"subject", msg.Subject)

	response, err := s.chat.Answer(ctx, req, fmt.Sprintf("nats.%s", msg.Subject), workerID)

	responseData, marshalErr := json.Marshal(response)
	if marshalErr != nil {
		slog.Error("Failed to marshal response",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"error", marshalErr)
		msg.Nak()
		return
	}

	if req.ReplyTo != "" {
		if publishErr := s.conn.Publish(req.ReplyTo, responseData); publishErr != nil {
			slog.Error("Failed to publish response",
				"worker_id", workerID,
				"req_id", req.ReqID,
				"reply_subject", req.ReplyTo,
				"error", publishErr)
		}
	}

	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("Failed to acknowledge message",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"error", ackErr)
	}

	duration := time.Since(start)
	if err == nil {
		slog.Info("NATS chat completed",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"duration_ms", duration.Milliseconds(),
			"tokens_out", response.TokensOut,
			"cached", response.Cached)
	} else {
		slog.Error("NATS chat failed",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"duration_ms", duration.Milliseconds(),
			"error", err)
	}
}

func (s *NATSService) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *NATSService) GetConnection() *nats.Conn {
	return s.conn
}

func (s *NATSService) GetMonitoringService() *MonitoringService {
	return s.monitoring
}
