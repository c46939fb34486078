package evaluation

import (
	"math"

	"robot-coach/server/internal/model"
)

// Weights 是评分用的启发式常量。它们不是模型推导出来的，可以通过配置覆盖。
type Weights struct {
	// PredicatePoints 是每个已定义条件贡献的满分。
	PredicatePoints float64 `yaml:"predicate_points"`
	// RatioMaxSlope 是正面比例超过上限后每单位扣分。
	RatioMaxSlope float64 `yaml:"ratio_max_slope"`
	// EscalationSlope 是升级数超过上限后每次扣分。
	EscalationSlope float64 `yaml:"escalation_slope"`
	// NeutralScore 是没有定义任何条件的场景得分。
	NeutralScore float64 `yaml:"neutral_score"`
	// MinRequiredSteps 是到达终态最少需要的步数，用于效率分。
	MinRequiredSteps int `yaml:"min_required_steps"`
}

// DefaultWeights 返回默认评分常量。
func DefaultWeights() Weights {
	return Weights{
		PredicatePoints:  25,
		RatioMaxSlope:    50,
		EscalationSlope:  10,
		NeutralScore:     50,
		MinRequiredSteps: 5,
	}
}

// withDefaults 用默认值补齐未设置（非正数）的字段。
func (w Weights) withDefaults() Weights {
	d := DefaultWeights()
	if w.PredicatePoints <= 0 {
		w.PredicatePoints = d.PredicatePoints
	}
	if w.RatioMaxSlope <= 0 {
		w.RatioMaxSlope = d.RatioMaxSlope
	}
	if w.EscalationSlope <= 0 {
		w.EscalationSlope = d.EscalationSlope
	}
	if w.NeutralScore <= 0 {
		w.NeutralScore = d.NeutralScore
	}
	if w.MinRequiredSteps <= 0 {
		w.MinRequiredSteps = d.MinRequiredSteps
	}
	return w
}

// Classifier 用参考场景对已完成的会话做回顾式分类。
// 场景目录构建后只读，可被并发使用。
type Classifier struct {
	scenarios []Scenario
	weights   Weights
}

// NewClassifier 创建分类器。scenarios 为空时使用内置场景。
func NewClassifier(scenarios []Scenario, w Weights) *Classifier {
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	c := &Classifier{
		scenarios: make([]Scenario, len(scenarios)),
		weights:   w.withDefaults(),
	}
	copy(c.scenarios, scenarios)
	return c
}

// Scenarios 返回场景目录副本（定义顺序）。
func (c *Classifier) Scenarios() []Scenario {
	out := make([]Scenario, len(c.scenarios))
	copy(out, c.scenarios)
	return out
}

// Scenario 按 ID 查找场景。
func (c *Classifier) Scenario(id string) (Scenario, bool) {
	for _, s := range c.scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// Score 计算统计与场景的匹配分，范围 [0,100]。
func (c *Classifier) Score(st Stats, sc Scenario) float64 {
	w := c.weights
	p := w.PredicatePoints
	ch := sc.Characteristics

	var earned, attainable float64

	if ch.PositiveRatioMin != nil {
		attainable += p
		threshold := *ch.PositiveRatioMin
		if st.PositiveRatio >= threshold {
			earned += p
		} else {
			earned += p * (st.PositiveRatio / threshold)
		}
	}

	if ch.PositiveRatioMax != nil {
		attainable += p
		threshold := *ch.PositiveRatioMax
		if st.PositiveRatio <= threshold {
			earned += p
		} else {
			earned += math.Max(0, p-(st.PositiveRatio-threshold)*w.RatioMaxSlope)
		}
	}

	if ch.MaxEscalations != nil {
		attainable += p
		ceiling := *ch.MaxEscalations
		if st.MaxEscalations <= ceiling {
			earned += p
		} else {
			earned += math.Max(0, p-float64(st.MaxEscalations-ceiling)*w.EscalationSlope)
		}
	}

	if ch.MinEscalations != nil {
		attainable += p
		if st.MaxEscalations >= *ch.MinEscalations {
			earned += p
		}
	}

	if ch.ExpectedFinalState != nil {
		attainable += p
		if st.FinalState == *ch.ExpectedFinalState {
			earned += p
		}
	}

	if len(ch.TypicalIntents) > 0 {
		attainable += p
		overlap := 0
		for _, intent := range ch.TypicalIntents {
			if st.UniqueIntents[intent] {
				overlap++
			}
		}
		earned += p * float64(overlap) / float64(len(ch.TypicalIntents))
	}

	if attainable == 0 {
		return w.NeutralScore
	}
	return clamp(100*earned/attainable, 0, 100)
}

// Classification 是一次分类的结果。
type Classification struct {
	Scenario   Scenario
	Confidence float64
	// Scores 与场景目录顺序一致。
	Scores []float64
}

// ClassifyStats 对统计结果打分并选出最佳场景。
// 严格更高才替换，平局保留目录中更靠前的场景。
func (c *Classifier) ClassifyStats(st Stats) Classification {
	out := Classification{Scores: make([]float64, len(c.scenarios))}
	best := -1
	for i, sc := range c.scenarios {
		score := c.Score(st, sc)
		out.Scores[i] = score
		if best < 0 || score > out.Confidence {
			best = i
			out.Confidence = score
		}
	}
	if best >= 0 {
		out.Scenario = c.scenarios[best]
	}
	return out
}

// Classify 对交互记录分类。没有记录时返回 false，置信度为 0。
func (c *Classifier) Classify(records []model.InteractionRecord) (Classification, bool) {
	if len(records) == 0 || len(c.scenarios) == 0 {
		return Classification{}, false
	}
	return c.ClassifyStats(ComputeStats(records)), true
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
