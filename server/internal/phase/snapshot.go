package phase

import (
	"encoding/json"

	"robot-coach/server/internal/model"
)

// Escalations 记录每个负面意图标签的升级次数，查询不存在的标签返回 0。
type Escalations map[string]int

// Get 返回标签的计数，默认 0。
func (e Escalations) Get(label string) int {
	return e[label]
}

// Total 返回所有标签计数之和。
func (e Escalations) Total() int {
	total := 0
	for _, n := range e {
		total += n
	}
	return total
}

// Clone 返回非 nil 的副本。
func (e Escalations) Clone() Escalations {
	out := make(Escalations, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Snapshot 是单个会话状态机的完整可序列化状态。
// 它是纯数据，状态机只对它做值变换，不读写任何存储。
type Snapshot struct {
	State            model.State `json:"state"`
	StepCount        int         `json:"step_count"`
	Escalations      Escalations `json:"escalation_counts"`
	SuccessSteps     int         `json:"success_steps"`
	PositiveTotal    int         `json:"positive_total"`
	NegativeTotal    int         `json:"negative_total"`
	ShouldSuggestEnd bool        `json:"should_suggest_end"`
	EndReason        string      `json:"end_reason"`
}

// Ground 返回没有历史时的初始快照。
func Ground() Snapshot {
	return Snapshot{
		State:       model.StateGreeting,
		Escalations: Escalations{},
	}
}

// TotalEscalations 返回升级总数。
func (s Snapshot) TotalEscalations() int {
	return s.Escalations.Total()
}

// IsFinal 判断是否处于终态。
func (s Snapshot) IsFinal() bool {
	return s.State == model.StateFeedback
}

// Statistics 是快照计数器的只读视图。
type Statistics struct {
	State            model.State    `json:"state"`
	StepCount        int            `json:"step_count"`
	TotalEscalations int            `json:"total_escalations"`
	Escalations      map[string]int `json:"escalation_counts"`
	SuccessSteps     int            `json:"success_steps"`
	PositiveTotal    int            `json:"positive_total"`
	NegativeTotal    int            `json:"negative_total"`
	PositiveRatio    float64        `json:"positive_ratio"`
	ShouldSuggestEnd bool           `json:"should_suggest_end"`
	EndReason        string         `json:"end_reason"`
}

// Statistics 汇总计数器，positive ratio 在没有正负意图时为 0。
func (s Snapshot) Statistics() Statistics {
	ratio := 0.0
	if denom := s.PositiveTotal + s.NegativeTotal; denom > 0 {
		ratio = float64(s.PositiveTotal) / float64(denom)
	}
	return Statistics{
		State:            s.State,
		StepCount:        s.StepCount,
		TotalEscalations: s.TotalEscalations(),
		Escalations:      map[string]int(s.Escalations.Clone()),
		SuccessSteps:     s.SuccessSteps,
		PositiveTotal:    s.PositiveTotal,
		NegativeTotal:    s.NegativeTotal,
		PositiveRatio:    ratio,
		ShouldSuggestEnd: s.ShouldSuggestEnd,
		EndReason:        s.EndReason,
	}
}

func (s Snapshot) clone() Snapshot {
	s.Escalations = s.Escalations.Clone()
	return s
}

func (s Snapshot) valid() bool {
	if !s.State.Valid() {
		return false
	}
	if s.StepCount < 0 || s.SuccessSteps < 0 || s.PositiveTotal < 0 || s.NegativeTotal < 0 {
		return false
	}
	for _, n := range s.Escalations {
		if n < 0 {
			return false
		}
	}
	return true
}

// Encode 序列化快照。
func Encode(s Snapshot) ([]byte, error) {
	s.Escalations = s.Escalations.Clone()
	return json.Marshal(s)
}

// Decode 反序列化快照。
// 缺失或格式错误的数据视为“没有历史会话”，直接返回初始快照。
func Decode(data []byte) Snapshot {
	if len(data) == 0 {
		return Ground()
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Ground()
	}
	if !s.valid() {
		return Ground()
	}
	s.Escalations = s.Escalations.Clone()
	return s
}
