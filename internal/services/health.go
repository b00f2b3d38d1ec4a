package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/edubot/internal/config"
)

// Version is reported in health responses.
var Version = "dev"

type HealthService struct {
	nats       *nats.Conn
	config     *config.Config
	modelType  string
	monitoring *MonitoringService
	started    time.Time
}

type HealthStatus struct {
	ModelName    string             `json:"model_name"`
	ModelType    string             `json:"model_type"`
	Status       string             `json:"status"` // online, busy
	LastActivity time.Time          `json:"last_activity"`
	Capabilities []string           `json:"capabilities"`
	Endpoint     string             `json:"endpoint"`
	NATSTopic    string             `json:"nats_topic"`
	Version      string             `json:"version"`
	Uptime       string             `json:"uptime"`
	Queue        BackpressureReport `json:"queue"`
}

func NewHealthService(natsConn *nats.Conn, cfg *config.Config, modelType string, monitoring *MonitoringService) *HealthService {
	return &HealthService{
		nats:       natsConn,
		config:     cfg,
		modelType:  modelType,
		monitoring: monitoring,
		started:    time.Now(),
	}
}

func (h *HealthService) Start(ctx context.Context) error {
	healthTopic := fmt.Sprintf("models.%s.health", h.config.ModelName)

	sub, err := h.nats.Subscribe(healthTopic, func(msg *nats.Msg) {
		data, err := json.Marshal(h.Status())
		if err != nil {
			slog.Error("Failed to marshal health status", "error", err)
			return
		}
		if err := msg.Respond(data); err != nil {
			slog.Error("Failed to respond to health check", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to health topic: %w", err)
	}
	defer sub.Unsubscribe()

	slog.Info("Health service started", "topic", healthTopic)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	heartbeatTopic := fmt.Sprintf("models.%s.heartbeat", h.config.ModelName)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			data, err := json.Marshal(h.Status())
			if err != nil {
				continue
			}
			if err := h.nats.Publish(heartbeatTopic, data); err != nil {
				slog.Warn("Failed to publish heartbeat", "error", err)
			}
		}
	}
}

// Status reports the current health of this service.
func (h *HealthService) Status() HealthStatus {
	queue := h.monitoring.Report()
	status := "online"
	if queue.Status == "critical" {
		status = "busy"
	}
	return HealthStatus{
		ModelName:    h.config.ModelName,
		ModelType:    h.modelType,
		Status:       status,
		LastActivity: time.Now(),
		Capabilities: []string{"question-answering"},
		Endpoint:     fmt.Sprintf("http://localhost%s/chat", h.config.HTTPAddr),
		NATSTopic:    h.config.Subject,
		Version:      Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Queue:        queue,
	}
}
