package repository

import (
	"context"

	"github.com/aigoflow/edubot/internal/models"
)

// Repository aggregates all repository interfaces
type Repository interface {
	Request() RequestRepositoryInterface
	Event() EventRepositoryInterface
}

// RequestRepositoryInterface defines request logging operations
type RequestRepositoryInterface interface {
	LogRequest(ctx context.Context, req *models.RequestLog) error
	GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLog, error)
}

// EventRepositoryInterface defines event logging operations
type EventRepositoryInterface interface {
	LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error
	GetEvents(ctx context.Context, limit int) ([]*models.Event, error)
}
