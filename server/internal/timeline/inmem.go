package timeline

import (
	"context"
	"sync"

	"robot-coach/server/internal/model"
)

// InMemoryStore 是一个基于内存的交互记录存储实现。
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]model.InteractionRecord
	seq     map[string]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string][]model.InteractionRecord),
		seq:     make(map[string]int64),
	}
}

// find 返回该 StepNumber 记录的下标，调用方需持有锁。
func (s *InMemoryStore) find(sessionID string, step int) int {
	for i, r := range s.records[sessionID] {
		if r.StepNumber == step {
			return i
		}
	}
	return -1
}

// Append 追加记录，并为该 session 分配单调递增 seq。
// 相同 StepNumber 且转移一致时直接返回已分配的 seq（幂等），用于重试。
func (s *InMemoryStore) Append(_ context.Context, sessionID string, rec *model.InteractionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.find(sessionID, rec.StepNumber); i >= 0 {
		existing := s.records[sessionID][i]
		if !sameTransition(&existing, rec) {
			return 0, ErrConflict
		}
		return existing.Seq, nil
	}

	// seq 在 Remove 之后也不回退。
	s.seq[sessionID]++
	seq := s.seq[sessionID]

	recCopy := *rec
	recCopy.Seq = seq
	recCopy.SessionID = sessionID
	s.records[sessionID] = append(s.records[sessionID], recCopy)
	return seq, nil
}

func (s *InMemoryStore) Remove(_ context.Context, sessionID string, rec *model.InteractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(sessionID, rec.StepNumber)
	if i < 0 || !sameTransition(&s.records[sessionID][i], rec) {
		return nil
	}
	records := s.records[sessionID]
	s.records[sessionID] = append(records[:i:i], records[i+1:]...)
	return nil
}

// List 返回某个 session 的全部记录（按 seq 顺序）的副本。
func (s *InMemoryStore) List(_ context.Context, sessionID string) ([]model.InteractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.records[sessionID]
	out := make([]model.InteractionRecord, len(records))
	copy(out, records)
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[sessionID]), nil
}

// Delete 删除某个 session 的全部记录与 seq 计数。
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	delete(s.seq, sessionID)
	return nil
}
