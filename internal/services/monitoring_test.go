package services

import (
	"encoding/json"
	"testing"

	"github.com/aigoflow/edubot/internal/config"
)

type recordingPublisher struct {
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		ModelName:             "distilgpt2-finetuned",
		MonitoringTopic:       "monitoring.backpressure",
		BackpressureThreshold: 2,
		Concurrency:           2,
		MaxMsgs:               100,
		HTTPAddr:              ":8000",
		Subject:               "chat.request.distilgpt2-finetuned",
	}
}

func TestBackpressureStatus(t *testing.T) {
	tests := []struct {
		total int64
		want  string
	}{
		{0, "healthy"},
		{1, "warning"},
		{2, "critical"},
		{5, "critical"},
	}
	for _, tt := range tests {
		if got := backpressureStatus(tt.total, 2); got != tt.want {
			t.Errorf("backpressureStatus(%d) = %s, want %s", tt.total, got, tt.want)
		}
	}
}

func TestMonitoringCounters(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewMonitoringService(pub, testConfig())

	m.IncrementPending()
	m.IncrementActive()
	report := m.Report()
	if report.PendingMessages != 1 || report.ActiveProcessing != 1 || report.Status != "critical" {
		t.Errorf("report = %+v", report)
	}

	m.DecrementActive()
	m.DecrementPending()
	report = m.Report()
	if report.Status != "healthy" || report.TotalProcessed != 1 {
		t.Errorf("report = %+v", report)
	}

	m.publish(report)
	if len(pub.subjects) != 1 || pub.subjects[0] != "monitoring.backpressure.distilgpt2-finetuned" {
		t.Fatalf("subjects = %v", pub.subjects)
	}
	var decoded BackpressureReport
	if err := json.Unmarshal(pub.payloads[0], &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ModelName != "distilgpt2-finetuned" || decoded.WorkerCount != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestHealthStatus(t *testing.T) {
	cfg := testConfig()
	mon := NewMonitoringService(&recordingPublisher{}, cfg)
	h := NewHealthService(nil, cfg, "gpt2", mon)

	st := h.Status()
	if st.Status != "online" || st.ModelType != "gpt2" {
		t.Errorf("status = %+v", st)
	}
	if st.Endpoint != "http://localhost:8000/chat" {
		t.Errorf("Endpoint = %q", st.Endpoint)
	}

	mon.IncrementActive()
	mon.IncrementActive()
	if st := h.Status(); st.Status != "busy" {
		t.Errorf("Status = %q, want busy", st.Status)
	}
}
