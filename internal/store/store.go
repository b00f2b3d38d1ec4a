package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		level TEXT,
		code TEXT,
		msg TEXT,
		meta TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS requests(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		trace_id TEXT,
		req_id TEXT,
		worker_id TEXT,
		source TEXT,
		question TEXT,
		formatted_input TEXT,
		answer TEXT,
		tokens_in INTEGER,
		tokens_out INTEGER,
		dur_ms REAL,
		cache_hit INTEGER,
		status TEXT,
		error TEXT
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS events(
		id BIGSERIAL PRIMARY KEY,
		ts DOUBLE PRECISION,
		level TEXT,
		code TEXT,
		msg TEXT,
		meta TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS requests(
		id BIGSERIAL PRIMARY KEY,
		ts DOUBLE PRECISION,
		trace_id TEXT,
		req_id TEXT,
		worker_id TEXT,
		source TEXT,
		question TEXT,
		formatted_input TEXT,
		answer TEXT,
		tokens_in INTEGER,
		tokens_out INTEGER,
		dur_ms DOUBLE PRECISION,
		cache_hit INTEGER,
		status TEXT,
		error TEXT
	)`,
}

type DB struct {
	*sql.DB
	driver string
}

// Open opens the sqlite database at path.
func Open(path string) (*DB, error) {
	return OpenDriver("sqlite3", path)
}

// OpenDriver opens a sqlite3 or postgres database and creates the tables.
func OpenDriver(driver, dsn string) (*DB, error) {
	var schema []string
	switch driver {
	case "sqlite3":
		schema = sqliteSchema
	case "postgres":
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &DB{DB: db, driver: driver}, nil
}

// Rebind rewrites ? placeholders to $n for postgres.
func (db *DB) Rebind(query string) string {
	if db.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (db *DB) Event(level, code, msg string, meta map[string]interface{}) error {
	m := ""
	if meta != nil {
		b, _ := json.Marshal(meta)
		m = string(b)
	}
	_, err := db.Exec(db.Rebind(`INSERT INTO events(ts,level,code,msg,meta) VALUES(?,?,?,?,?)`),
		float64(time.Now().UnixNano())/1e9, level, code, msg, m)
	return err
}

func (db *DB) Req(start time.Time, traceID, reqID, workerID, source, question, formattedInput, answer string,
	tokIn, tokOut int, dur time.Duration, cacheHit bool, status, errStr string) error {
	hit := 0
	if cacheHit {
		hit = 1
	}
	_, err := db.Exec(db.Rebind(`INSERT INTO requests(
		ts, trace_id, req_id, worker_id, source, question, formatted_input, answer, tokens_in, tokens_out, dur_ms, cache_hit, status, error)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		float64(start.UnixNano())/1e9, traceID, reqID, workerID, source, question, formattedInput, answer, tokIn, tokOut, float64(dur.Milliseconds()), hit, status, errStr)
	return err
}
