package phase

import "robot-coach/server/internal/model"

const (
	DefaultMaxSuccessSteps = 5
	DefaultMaxEscalations  = 3
)

// Machine 是阶段状态机：对 (快照, 意图) 做纯函数转移。
// 不做 I/O、没有隐藏状态，同样的输入总是得到同样的输出。
type Machine struct {
	// MaxSuccessSteps 是练习阶段连续成功多少步后自动结束。
	MaxSuccessSteps int
	// MaxEscalations 是升级总数达到多少后建议结束。
	MaxEscalations int
}

// NewMachine 创建状态机，非正数阈值使用默认值。
func NewMachine(maxSuccessSteps, maxEscalations int) Machine {
	return Machine{MaxSuccessSteps: maxSuccessSteps, MaxEscalations: maxEscalations}
}

func (m Machine) maxSuccessSteps() int {
	if m.MaxSuccessSteps <= 0 {
		return DefaultMaxSuccessSteps
	}
	return m.MaxSuccessSteps
}

func (m Machine) maxEscalations() int {
	if m.MaxEscalations <= 0 {
		return DefaultMaxEscalations
	}
	return m.MaxEscalations
}

// Apply 把一个意图应用到快照上，返回新快照。入参快照不会被修改。
//
// 顺序：先记账（正负计数、升级计数），再查转移表，
// 练习阶段成功步数达到阈值时强制进入反馈，最后计算结束建议并累加步数。
// 反馈阶段是吸收态：除了 StepCount 加一，其余保持不变。
func (m Machine) Apply(s Snapshot, in Intent) Snapshot {
	next := s.clone()
	if s.State == model.StateFeedback {
		next.StepCount++
		return next
	}

	switch in.Category {
	case CategoryPositive:
		next.PositiveTotal++
	case CategoryNegative:
		next.NegativeTotal++
		next.Escalations[in.Label] += in.weight()
	}

	to := m.transition(&next, s.State, in.Category)

	autoEnded := false
	if s.State == model.StateExercise && next.SuccessSteps >= m.maxSuccessSteps() {
		to = model.StateFeedback
		next.EndReason = model.EndReasonSuccessSteps
		autoEnded = true
	}
	next.State = to

	next.ShouldSuggestEnd = next.Escalations.Total() >= m.maxEscalations() && to != model.StateFeedback
	if next.ShouldSuggestEnd && !autoEnded {
		next.EndReason = model.EndReasonMaxEscalations
	}

	next.StepCount++
	return next
}

// transition 查转移表，练习阶段的成功步数也在这里维护。
func (m Machine) transition(next *Snapshot, from model.State, c Category) model.State {
	switch from {
	case model.StateExplanation:
		if c == CategoryNegative {
			return model.StateExplanation
		}
		return model.StateExercise

	case model.StateExercise:
		switch c {
		case CategoryNegative:
			return model.StateBreak
		case CategoryFeedbackTerminal:
			return model.StateFeedback
		default:
			next.SuccessSteps++
			return model.StateExercise
		}

	case model.StateBreak:
		switch c {
		case CategoryPositive:
			next.SuccessSteps = 0
			return model.StateExercise
		case CategoryFeedbackTerminal:
			return model.StateFeedback
		default:
			return model.StateBreak
		}

	default:
		// 问候之后无论什么意图都进入讲解。
		return model.StateExplanation
	}
}

// ForceEnd 无条件结束会话：进入反馈阶段，计数器不变。
// 用于用户主动结束，不经过 Apply。
func (m Machine) ForceEnd(s Snapshot) Snapshot {
	next := s.clone()
	next.State = model.StateFeedback
	next.EndReason = model.EndReasonForced
	next.ShouldSuggestEnd = false
	return next
}
