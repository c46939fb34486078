package session

import (
	"context"
	"errors"
	"time"

	"robot-coach/server/internal/model"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrConflict 表示存储中的步数与调用方期望的不一致，说明有并发写入。
	ErrConflict = errors.New("session step count conflict")
	ErrExists   = errors.New("session already exists")
)

// Session 是会话的持久化形态。
// Snapshot 是编码后的状态机快照，对存储来说是不透明的字节。
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	// StepCount 与快照里的步数保持一致，用于乐观并发校验。
	StepCount int
	Snapshot  []byte
	Rating    *model.Rating
}

// Ended 判断会话是否已经结束。
func (s *Session) Ended() bool {
	return s.EndedAt != nil
}

func (s *Session) clone() *Session {
	out := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	if s.Snapshot != nil {
		out.Snapshot = append([]byte(nil), s.Snapshot...)
	}
	if s.Rating != nil {
		r := *s.Rating
		out.Rating = &r
	}
	return &out
}

type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// Save 仅当存储中的 StepCount 等于 expectedStep 时写入，否则返回 ErrConflict。
	Save(ctx context.Context, s *Session, expectedStep int) error
	Delete(ctx context.Context, id string) error
	// List 按开始时间倒序返回最近的会话，limit<=0 表示不限。
	List(ctx context.Context, limit int) ([]*Session, error)
}
