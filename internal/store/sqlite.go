package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// Invocation 一次工具调用的审计记录
type Invocation struct {
	ID         string    `json:"id"`
	Tool       string    `json:"tool"`
	Arguments  string    `json:"arguments"`
	Error      bool      `json:"error"`
	Message    string    `json:"message,omitempty"`
	Summary    string    `json:"summary"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Journal interface {
	Init(ctx context.Context) error
	Close() error
	Record(ctx context.Context, inv Invocation) error
	List(ctx context.Context, tool string, limit int) ([]Invocation, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLiteJournal(dsn string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func (j *SQLiteJournal) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			tool TEXT NOT NULL,
			arguments TEXT NOT NULL,
			is_error INTEGER NOT NULL,
			message TEXT,
			summary TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_created ON invocations(created_at_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations(tool, created_at_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "init invocations schema")
		}
	}
	return nil
}

// Record 写入一条调用记录，ID 和时间为空时自动补齐
func (j *SQLiteJournal) Record(ctx context.Context, inv Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.Arguments == "" {
		inv.Arguments = "{}"
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO invocations (id, tool, arguments, is_error, message, summary, duration_ms, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Tool, inv.Arguments, boolToInt(inv.Error), inv.Message, inv.Summary,
		inv.DurationMS, inv.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return errors.Wrapf(err, "insert invocation %s", inv.Tool)
	}
	return nil
}

// List 按时间倒序返回最近的调用，tool 为空时不过滤
func (j *SQLiteJournal) List(ctx context.Context, tool string, limit int) ([]Invocation, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, tool, arguments, is_error, COALESCE(message, ''), summary, duration_ms, created_at_ms
		FROM invocations
		WHERE (? = '' OR tool = ?)
		ORDER BY created_at_ms DESC, rowid DESC
		LIMIT ?
	`, tool, tool, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query invocations")
	}
	defer rows.Close()

	out := make([]Invocation, 0, limit)
	for rows.Next() {
		var (
			inv       Invocation
			isErr     int
			createdMS int64
		)
		if err := rows.Scan(&inv.ID, &inv.Tool, &inv.Arguments, &isErr, &inv.Message, &inv.Summary, &inv.DurationMS, &createdMS); err != nil {
			return nil, errors.Wrap(err, "scan invocation")
		}
		inv.Error = isErr != 0
		inv.CreatedAt = time.UnixMilli(createdMS).UTC()
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate invocations")
	}
	return out, nil
}

// PruneBefore 删除 cutoff 之前的记录，返回删除条数
func (j *SQLiteJournal) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM invocations WHERE created_at_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "prune invocations")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "prune invocations")
	}
	return n, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
