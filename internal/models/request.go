package models

import "time"

// Query is the body of a chat request.
type Query struct {
	Question string `json:"question"`
}

// Answer is the body of a successful chat response.
type Answer struct {
	Answer string `json:"answer"`
}

// RequestLog represents a logged chat request
type RequestLog struct {
	Timestamp      time.Time `json:"ts"`
	TraceID        string    `json:"trace_id"`
	ReqID          string    `json:"req_id"`
	WorkerID       string    `json:"worker_id"`
	Source         string    `json:"source"`
	Question       string    `json:"question"`
	FormattedInput string    `json:"formatted_input"`
	Answer         string    `json:"answer"`
	TokensIn       int       `json:"tokens_in"`
	TokensOut      int       `json:"tokens_out"`
	DurationMs     int64     `json:"dur_ms"`
	CacheHit       bool      `json:"cache_hit"`
	Status         string    `json:"status"`
	Error          string    `json:"error"`
}

// Event is a lifecycle event recorded by the service.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Level     string    `json:"level"`
	Code      string    `json:"code"`
	Msg       string    `json:"msg"`
	Meta      string    `json:"meta"`
}
