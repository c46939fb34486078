package evaluation

import (
	"robot-coach/server/internal/model"
	"robot-coach/server/internal/rules"
)

// 统计用的意图类别集合。除了目录里的意图标签，也接受描述性的短标签，
// 便于自定义规则文件直接使用。
var (
	positiveIntents = map[string]bool{
		rules.IntentPositiveAffect: true,
		"Engaged":                  true,
		"Positive Affect":          true,
		"Acknowledgment":           true,
		"Ready":                    true,
		"Completion":               true,
		"Greeting":                 true,
	}
	negativeIntents = map[string]bool{
		rules.IntentFrustrated:    true,
		rules.IntentDisengagement: true,
		rules.IntentConfused:      true,
		"Confusion":               true,
		"Stress":                  true,
		"Frustration":             true,
		"Disengagement":           true,
		"Overload":                true,
		"Error":                   true,
	}
)

// IsPositiveIntent 判断意图是否属于正面集合。
func IsPositiveIntent(intent string) bool { return positiveIntents[intent] }

// IsNegativeIntent 判断意图是否属于负面集合。
func IsNegativeIntent(intent string) bool { return negativeIntents[intent] }

// Stats 是对有序交互记录的聚合结果。
type Stats struct {
	PositiveRatio  float64
	NegativeRatio  float64
	TotalSteps     int
	MaxEscalations int
	FinalState     model.State
	Intents        []string
	Triggers       []string
	UniqueIntents  map[string]bool
}

// ComputeStats 聚合交互记录。空输入返回零值统计，不是错误。
func ComputeStats(records []model.InteractionRecord) Stats {
	st := Stats{UniqueIntents: map[string]bool{}}
	if len(records) == 0 {
		return st
	}

	var pos, neg int
	for _, r := range records {
		st.Intents = append(st.Intents, r.InferredIntent)
		st.Triggers = append(st.Triggers, r.Trigger)
		st.UniqueIntents[r.InferredIntent] = true

		if IsPositiveIntent(r.InferredIntent) {
			pos++
		}
		if IsNegativeIntent(r.InferredIntent) {
			neg++
		}
		if r.EscalationTotal > st.MaxEscalations {
			st.MaxEscalations = r.EscalationTotal
		}
	}

	total := len(records)
	st.TotalSteps = total
	st.PositiveRatio = float64(pos) / float64(total)
	st.NegativeRatio = float64(neg) / float64(total)
	st.FinalState = records[total-1].StateAfter
	return st
}
