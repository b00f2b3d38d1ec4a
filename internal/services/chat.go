package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/aigoflow/edubot/internal/answer"
	"github.com/aigoflow/edubot/internal/llm"
	"github.com/aigoflow/edubot/internal/models"
	"github.com/aigoflow/edubot/internal/repository"
)

// Generator produces a decoded generation for a prompt. *llm.Model implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxNewTokens int) (*llm.Generation, error)
}

// ChatRequest is one question as carried on the NATS work queue.
type ChatRequest struct {
	TraceID  string `json:"trace_id,omitempty"`
	ReqID    string `json:"req_id"`
	Question string `json:"question"`
	ReplyTo  string `json:"reply_to,omitempty"`
}

// ChatResponse is the reply to a ChatRequest. Error is set when generation failed.
type ChatResponse struct {
	ReqID      string `json:"req_id"`
	Answer     string `json:"answer"`
	TokensIn   int    `json:"tokens_in"`
	TokensOut  int    `json:"tokens_out"`
	DurationMs int64  `json:"duration_ms"`
	Cached     bool   `json:"cached,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ChatOptions configures prompt construction, the token budget and the answer cache.
type ChatOptions struct {
	Separator    string
	MaxNewTokens int
	CacheTTL     time.Duration // 0 disables the answer cache
}

// ChatService answers questions with the loaded model and logs every request.
type ChatService struct {
	llm   Generator
	repo  repository.Repository
	opts  ChatOptions
	cache *ttlcache.Cache[string, string]
}

// NewChatService creates a chat service. The answer cache janitor runs until Close.
func NewChatService(gen Generator, repo repository.Repository, opts ChatOptions) *ChatService {
	if opts.Separator == "" {
		opts.Separator = answer.DefaultSeparator
	}
	s := &ChatService{
		llm:  gen,
		repo: repo,
		opts: opts,
	}
	if opts.CacheTTL > 0 {
		s.cache = ttlcache.New[string, string](
			ttlcache.WithTTL[string, string](opts.CacheTTL),
			ttlcache.WithDisableTouchOnHit[string, string](),
		)
		go s.cache.Start()
	}
	return s
}

// Close stops the answer cache janitor.
func (s *ChatService) Close() {
	if s.cache != nil {
		s.cache.Stop()
	}
}

// Answer generates the answer to one question. Generation failures, including
// panics, are returned as an error together with a response carrying it.
func (s *ChatService) Answer(ctx context.Context, req ChatRequest, source string, workerID string) (response *ChatResponse, err error) {
	start := time.Now()

	traceID := req.TraceID
	if traceID == "" {
		traceID = req.ReqID
	}
	prompt := answer.BuildPrompt(req.Question, s.opts.Separator)

	defer func() {
		if r := recover(); r != nil {
			duration := time.Since(start)
			errStr := fmt.Sprintf("service panic: %v", r)
			slog.Error("Chat panic recovered", "req_id", req.ReqID, "error", errStr)

			s.logRequest(ctx, &models.RequestLog{
				Timestamp:      start,
				TraceID:        traceID,
				ReqID:          req.ReqID,
				WorkerID:       workerID,
				Source:         source,
				Question:       req.Question,
				FormattedInput: prompt,
				Answer:         "[CRASHED]",
				DurationMs:     duration.Milliseconds(),
				Status:         "panic",
				Error:          errStr,
			})

			response = &ChatResponse{
				ReqID:      req.ReqID,
				DurationMs: duration.Milliseconds(),
				Error:      errStr,
			}
			err = fmt.Errorf("service panic: %v", r)
		}
	}()

	if s.cache != nil {
		if item := s.cache.Get(req.Question); item != nil {
			duration := time.Since(start)
			s.logRequest(ctx, &models.RequestLog{
				Timestamp:      start,
				TraceID:        traceID,
				ReqID:          req.ReqID,
				WorkerID:       workerID,
				Source:         source,
				Question:       req.Question,
				FormattedInput: prompt,
				Answer:         item.Value(),
				DurationMs:     duration.Milliseconds(),
				CacheHit:       true,
				Status:         "ok",
			})
			return &ChatResponse{
				ReqID:      req.ReqID,
				Answer:     item.Value(),
				DurationMs: duration.Milliseconds(),
				Cached:     true,
			}, nil
		}
	}

	var text string
	var tokensIn, tokensOut int
	gen, err := s.llm.Generate(ctx, prompt, s.opts.MaxNewTokens)
	if err == nil {
		text = answer.Extract(gen.Decoded, s.opts.Separator)
		tokensIn, tokensOut = gen.TokensIn, gen.TokensOut
	}

	duration := time.Since(start)
	status := "ok"
	errStr := ""
	if err != nil {
		status = "error"
		errStr = err.Error()
	} else if s.cache != nil {
		s.cache.Set(req.Question, text, ttlcache.DefaultTTL)
	}

	s.logRequest(ctx, &models.RequestLog{
		Timestamp:      start,
		TraceID:        traceID,
		ReqID:          req.ReqID,
		WorkerID:       workerID,
		Source:         source,
		Question:       req.Question,
		FormattedInput: prompt,
		Answer:         text,
		TokensIn:       tokensIn,
		TokensOut:      tokensOut,
		DurationMs:     duration.Milliseconds(),
		Status:         status,
		Error:          errStr,
	})

	response = &ChatResponse{
		ReqID:      req.ReqID,
		Answer:     text,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		DurationMs: duration.Milliseconds(),
		Error:      errStr,
	}
	return response, err
}

func (s *ChatService) logRequest(ctx context.Context, log *models.RequestLog) {
	if err := s.repo.Request().LogRequest(ctx, log); err != nil {
		slog.Warn("Failed to store request log", "req_id", log.ReqID, "error", err)
	}
}

// GetRequestLogs retrieves request logs through proper repository interface
func (s *ChatService) GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLog, error) {
	return s.repo.Request().GetRequestLogs(ctx, limit)
}

// GetEvents returns the most recent lifecycle events, newest first.
func (s *ChatService) GetEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	return s.repo.Event().GetEvents(ctx, limit)
}
