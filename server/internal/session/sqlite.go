package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"robot-coach/server/internal/model"
	"robot-coach/server/internal/storage"
)

// SQLiteStore 把会话保存在 sessions 表里。数据库由 storage.Open 创建。
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const sessionColumns = `id, started_at, ended_at, step_count, snapshot,
	rating_supportive, rating_understandable, rating_non_intrusive, evaluated_at`

func (s *SQLiteStore) Create(ctx context.Context, sess *Session) error {
	row := toRow(sess)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.args()...,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	r := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// Save 用 step_count 做条件更新：影响行数为 0 时区分不存在与冲突。
func (s *SQLiteStore) Save(ctx context.Context, sess *Session, expectedStep int) error {
	row := toRow(sess)
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET started_at = ?, ended_at = ?, step_count = ?, snapshot = ?,
			rating_supportive = ?, rating_understandable = ?, rating_non_intrusive = ?, evaluated_at = ?
		 WHERE id = ? AND step_count = ?`,
		append(row.args()[1:], row.id, expectedStep)...,
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", sess.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s: %w", sess.ID, err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sess.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check session %s: %w", sess.ID, err)
	}
	return ErrConflict
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC, id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type sessionRow struct {
	id             string
	startedAt      string
	endedAt        sql.NullString
	stepCount      int
	snapshot       sql.NullString
	supportive     sql.NullInt64
	understandable sql.NullInt64
	nonIntrusive   sql.NullInt64
	evaluatedAt    sql.NullString
}

func (r sessionRow) args() []any {
	return []any{
		r.id, r.startedAt, r.endedAt, r.stepCount, r.snapshot,
		r.supportive, r.understandable, r.nonIntrusive, r.evaluatedAt,
	}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func toRow(sess *Session) sessionRow {
	r := sessionRow{
		id:        sess.ID,
		startedAt: storage.FormatTime(sess.StartedAt),
		stepCount: sess.StepCount,
	}
	if sess.EndedAt != nil {
		r.endedAt = sql.NullString{String: storage.FormatTime(*sess.EndedAt), Valid: true}
	}
	if sess.Snapshot != nil {
		r.snapshot = sql.NullString{String: string(sess.Snapshot), Valid: true}
	}
	if sess.Rating != nil {
		r.supportive = nullInt(sess.Rating.Supportive)
		r.understandable = nullInt(sess.Rating.Understandable)
		r.nonIntrusive = nullInt(sess.Rating.NonIntrusive)
		r.evaluatedAt = sql.NullString{String: storage.FormatTime(sess.Rating.EvaluatedAt), Valid: true}
	}
	return r
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*Session, error) {
	var r sessionRow
	if err := sc.Scan(&r.id, &r.startedAt, &r.endedAt, &r.stepCount, &r.snapshot,
		&r.supportive, &r.understandable, &r.nonIntrusive, &r.evaluatedAt); err != nil {
		return nil, err
	}

	sess := &Session{ID: r.id, StepCount: r.stepCount}
	// 时间解析失败按零值处理，不影响读取快照。
	sess.StartedAt, _ = storage.ParseTime(r.startedAt)
	if r.endedAt.Valid {
		t, _ := storage.ParseTime(r.endedAt.String)
		sess.EndedAt = &t
	}
	if r.snapshot.Valid {
		sess.Snapshot = []byte(r.snapshot.String)
	}
	if r.evaluatedAt.Valid {
		evaluatedAt, _ := storage.ParseTime(r.evaluatedAt.String)
		sess.Rating = &model.Rating{
			Supportive:     intPtr(r.supportive),
			Understandable: intPtr(r.understandable),
			NonIntrusive:   intPtr(r.nonIntrusive),
			EvaluatedAt:    evaluatedAt,
		}
	}
	return sess, nil
}
