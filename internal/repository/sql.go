package repository

import (
	"context"
	"time"

	"github.com/aigoflow/edubot/internal/models"
	"github.com/aigoflow/edubot/internal/store"
)

// SQLRepository implements Repository on a sqlite3 or postgres store.
type SQLRepository struct {
	requestRepo RequestRepositoryInterface
	eventRepo   EventRepositoryInterface
}

func NewSQLRepository(db *store.DB) Repository {
	return &SQLRepository{
		requestRepo: &SQLRequestRepository{db: db},
		eventRepo:   &SQLEventRepository{db: db},
	}
}

func (r *SQLRepository) Request() RequestRepositoryInterface {
	return r.requestRepo
}

func (r *SQLRepository) Event() EventRepositoryInterface {
	return r.eventRepo
}

// SQLRequestRepository handles request logging
type SQLRequestRepository struct {
	db *store.DB
}

func (r *SQLRequestRepository) LogRequest(ctx context.Context, req *models.RequestLog) error {
	return r.db.Req(
		req.Timestamp,
		req.TraceID,
		req.ReqID,
		req.WorkerID,
		req.Source,
		req.Question,
		req.FormattedInput,
		req.Answer,
		req.TokensIn,
		req.TokensOut,
		time.Duration(req.DurationMs)*time.Millisecond,
		req.CacheHit,
		req.Status,
		req.Error,
	)
}

func (r *SQLRequestRepository) GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLog, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`SELECT ts,trace_id,req_id,worker_id,source,question,formatted_input,answer,tokens_in,tokens_out,dur_ms,cache_hit,status,error FROM requests ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.RequestLog{}
	for rows.Next() {
		var log models.RequestLog
		var tsFloat, durMs float64
		var hit int

		if err := rows.Scan(
			&tsFloat, &log.TraceID, &log.ReqID, &log.WorkerID, &log.Source,
			&log.Question, &log.FormattedInput, &log.Answer,
			&log.TokensIn, &log.TokensOut, &durMs, &hit, &log.Status, &log.Error,
		); err != nil {
			return nil, err
		}
		log.Timestamp = time.Unix(0, int64(tsFloat*1e9))
		log.DurationMs = int64(durMs)
		log.CacheHit = hit != 0
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

// SQLEventRepository handles event logging
type SQLEventRepository struct {
	db *store.DB
}

func (r *SQLEventRepository) LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error {
	return r.db.Event(level, code, msg, meta)
}

func (r *SQLEventRepository) GetEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`SELECT ts,level,code,msg,meta FROM events ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		var ev models.Event
		var tsFloat float64
		if err := rows.Scan(&tsFloat, &ev.Level, &ev.Code, &ev.Msg, &ev.Meta); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(0, int64(tsFloat*1e9))
		events = append(events, &ev)
	}
	return events, rows.Err()
}
