package session

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore 是一个基于内存的 Session 存储实现。
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Session
}

func NewInMemoryStore() *InMemoryStore {
	// 重启即丢数据；需要保留历史时用 SQLiteStore。
	return &InMemoryStore{data: make(map[string]*Session)}
}

// Create 新建会话，ID 已存在时返回 ErrExists。
func (s *InMemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[sess.ID]; ok {
		return ErrExists
	}
	s.data[sess.ID] = sess.clone()
	return nil
}

// Get 根据 SessionID 获取 Session，返回副本。
func (s *InMemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.clone(), nil
}

// Save 保存或更新 Session，带乐观并发校验。
func (s *InMemoryStore) Save(_ context.Context, sess *Session, expectedStep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data[sess.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.StepCount != expectedStep {
		return ErrConflict
	}
	s.data[sess.ID] = sess.clone()
	return nil
}

// Delete 删除会话，不存在时返回 ErrNotFound。
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return ErrNotFound
	}
	delete(s.data, id)
	return nil
}

// List 按开始时间倒序返回会话副本。
func (s *InMemoryStore) List(_ context.Context, limit int) ([]*Session, error) {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.data))
	for _, sess := range s.data {
		out = append(out, sess.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
