package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aigoflow/edubot/internal/config"
)

// Publisher is the part of *nats.Conn the monitoring and health services use.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// MonitoringService tracks queued and in-flight chat requests and publishes
// backpressure reports.
type MonitoringService struct {
	pub     Publisher
	config  *config.Config
	pending atomic.Int64
	active  atomic.Int64
	served  atomic.Int64
}

type BackpressureReport struct {
	ModelName        string    `json:"model_name"`
	PendingMessages  int64     `json:"pending_messages"`
	ActiveProcessing int64     `json:"active_processing"`
	TotalProcessed   int64     `json:"total_processed"`
	Timestamp        time.Time `json:"timestamp"`
	WorkerCount      int       `json:"worker_count"`
	QueueCapacity    int       `json:"queue_capacity"`
	Status           string    `json:"status"` // healthy, warning, critical
}

func NewMonitoringService(pub Publisher, cfg *config.Config) *MonitoringService {
	return &MonitoringService{
		pub:    pub,
		config: cfg,
	}
}

func (m *MonitoringService) Start(ctx context.Context) error {
	slog.Info("Starting monitoring service",
		"topic", m.topic(),
		"threshold", m.config.BackpressureThreshold)

	// Report every second while work is queued, every ten seconds when idle.
	interval := 10 * time.Second
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			report := m.Report()
			m.publish(report)
			if report.PendingMessages > 0 {
				interval = time.Second
			} else {
				interval = 10 * time.Second
			}
			timer.Reset(interval)
		}
	}
}

// Report snapshots the counters.
func (m *MonitoringService) Report() BackpressureReport {
	pending := m.pending.Load()
	active := m.active.Load()
	return BackpressureReport{
		ModelName:        m.config.ModelName,
		PendingMessages:  pending,
		ActiveProcessing: active,
		TotalProcessed:   m.served.Load(),
		Timestamp:        time.Now(),
		WorkerCount:      m.config.Concurrency,
		QueueCapacity:    m.config.MaxMsgs,
		Status:           backpressureStatus(pending+active, int64(m.config.BackpressureThreshold)),
	}
}

func (m *MonitoringService) publish(report BackpressureReport) {
	data, err := json.Marshal(report)
	if err != nil {
		slog.Error("Failed to marshal backpressure report", "error", err)
		return
	}
	if err := m.pub.Publish(m.topic(), data); err != nil {
		slog.Warn("Failed to publish backpressure report", "error", err)
		return
	}
	if report.Status != "healthy" {
		slog.Info("Backpressure report",
			"pending", report.PendingMessages,
			"active", report.ActiveProcessing,
			"status", report.Status)
	}
}

func (m *MonitoringService) topic() string {
	return fmt.Sprintf("%s.%s", m.config.MonitoringTopic, m.config.ModelName)
}

func backpressureStatus(total, threshold int64) string {
	switch {
	case total == 0:
		return "healthy"
	case total < threshold:
		return "warning"
	default:
		return "critical"
	}
}

func (m *MonitoringService) IncrementPending() { m.pending.Add(1) }

func (m *MonitoringService) DecrementPending() { m.pending.Add(-1) }

func (m *MonitoringService) IncrementActive() { m.active.Add(1) }

// DecrementActive also counts the request as processed.
func (m *MonitoringService) DecrementActive() {
	m.active.Add(-1)
	m.served.Add(1)
}
