package timeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"robot-coach/server/internal/model"
	"robot-coach/server/internal/storage"
)

// SQLiteStore 把交互记录写入 interactions 表。
// seq 使用表的自增主键，因此跨 session 单调递增，单个 session 内同样单调。
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Append(ctx context.Context, sessionID string, rec *model.InteractionRecord) (int64, error) {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	// UNIQUE(session_id, step_number) 保证重复写入被忽略。
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (
			session_id, step_number, state_before, state_after, trigger,
			inferred_intent, speech_act, response_text, priority, escalation_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, step_number) DO NOTHING`,
		sessionID, rec.StepNumber, string(rec.StateBefore), string(rec.StateAfter), rec.Trigger,
		rec.InferredIntent, rec.SpeechAct, rec.ResponseText, rec.Priority, rec.EscalationTotal,
		storage.FormatTime(ts),
	)
	if err != nil {
		return 0, fmt.Errorf("insert interaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}

	var (
		seq     int64
		trigger string
		after   string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT seq, trigger, state_after FROM interactions WHERE session_id = ? AND step_number = ?`,
		sessionID, rec.StepNumber,
	).Scan(&seq, &trigger, &after)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("interaction %s/%d vanished after conflict", sessionID, rec.StepNumber)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup interaction: %w", err)
	}
	if trigger != rec.Trigger || model.State(after) != rec.StateAfter {
		return 0, fmt.Errorf("interaction %s/%d: %w", sessionID, rec.StepNumber, ErrConflict)
	}
	return seq, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, sessionID string, rec *model.InteractionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM interactions
		WHERE session_id = ? AND step_number = ? AND trigger = ? AND state_after = ?`,
		sessionID, rec.StepNumber, rec.Trigger, string(rec.StateAfter),
	)
	if err != nil {
		return fmt.Errorf("remove interaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]model.InteractionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, step_number, state_before, state_after, trigger,
			COALESCE(inferred_intent, ''), COALESCE(speech_act, ''), COALESCE(response_text, ''),
			COALESCE(priority, ''), escalation_count, created_at
		FROM interactions WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	out := []model.InteractionRecord{}
	for rows.Next() {
		var (
			r             model.InteractionRecord
			before, after string
			createdAt     string
		)
		if err := rows.Scan(&r.Seq, &r.StepNumber, &before, &after, &r.Trigger,
			&r.InferredIntent, &r.SpeechAct, &r.ResponseText,
			&r.Priority, &r.EscalationTotal, &createdAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		r.SessionID = sessionID
		r.StateBefore = model.State(before)
		r.StateAfter = model.State(after)
		r.Timestamp, _ = storage.ParseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interactions WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return n, nil
}

// Delete 删除该 session 的全部记录。删除 sessions 行时外键级联也会做同样的事。
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete interactions: %w", err)
	}
	return nil
}
