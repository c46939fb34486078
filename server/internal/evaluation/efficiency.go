package evaluation

import (
	"math"

	"robot-coach/server/internal/model"
)

// Efficiency 根据 stateAfter 序列计算阶段移动的线性度与效率。
//
// 每个已知状态映射到规范顺序中的下标；下标变大算前进，变小算后退。
// 第一个已知状态相对“起点之前”计为一次前进。未知状态被忽略。
func (c *Classifier) Efficiency(records []model.InteractionRecord) model.FSMMetrics {
	m := model.FSMMetrics{StateDistribution: map[model.State]int{}}
	if len(records) == 0 {
		return m
	}

	last := -1
	for _, r := range records {
		s := r.StateAfter
		m.StateDistribution[s]++
		if s == model.StateFeedback {
			m.ReachedFinalState = true
		}

		idx := s.Index()
		if idx < 0 {
			continue
		}
		if idx > last {
			m.ForwardMoves++
		} else if idx < last {
			m.BackwardMoves++
		}
		last = idx
	}

	m.TotalSteps = len(records)
	m.UniqueStatesVisited = len(m.StateDistribution)

	linearity := 1.0
	if moves := m.ForwardMoves + m.BackwardMoves; moves > 0 {
		linearity = float64(m.ForwardMoves) / float64(moves)
	}
	m.LinearityScore = int(math.Round(linearity * 100))

	if m.ReachedFinalState {
		efficiency := math.Min(1, float64(c.weights.MinRequiredSteps)/float64(m.TotalSteps))
		m.EfficiencyScore = int(math.Round(efficiency * 100))
	}
	return m
}
