package timeline

import (
	"context"
	"errors"

	"robot-coach/server/internal/model"
)

// ErrConflict 表示同一 StepNumber 已经写入了另一条不同的记录。
var ErrConflict = errors.New("interaction step already recorded with a different transition")

type Store interface {
	// Append 以 append-first 的契约写入一条交互记录，返回本次写入的 seq。
	// 约定：同一 session 的 seq 单调递增；相同 StepNumber 且 Trigger、StateAfter 一致的
	// 重复写入幂等返回同一 seq，不一致时返回 ErrConflict。
	Append(ctx context.Context, sessionID string, rec *model.InteractionRecord) (int64, error)
	// Remove 撤销一条记录：仅当该 StepNumber 上的记录与 rec 的 Trigger、StateAfter 一致时删除。
	// 用于快照保存失败后回滚，记录不存在时不报错。
	Remove(ctx context.Context, sessionID string, rec *model.InteractionRecord) error
	// List 按 seq 顺序返回该 session 的全部记录，用于统计与评估。
	List(ctx context.Context, sessionID string) ([]model.InteractionRecord, error)
	// Count 返回该 session 已写入的记录数。
	Count(ctx context.Context, sessionID string) (int, error)
	// Delete 删除该 session 的全部记录。
	Delete(ctx context.Context, sessionID string) error
}

// sameTransition 判断两条记录是否描述同一次转移。
func sameTransition(a, b *model.InteractionRecord) bool {
	return a.Trigger == b.Trigger && a.StateAfter == b.StateAfter
}
