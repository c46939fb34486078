package evaluation

import (
	"fmt"
	"math"
	"strings"

	"robot-coach/server/internal/model"
)

// 摘要文本的固定阈值。
const (
	strongMatchConfidence  = 70
	partialMatchConfidence = 50
	efficientScore         = 70
	manyBackwardMoves      = 2
)

const emptySessionSummary = "Session has no interactions."

// Evaluate 生成完整的评估报告。没有记录时返回显式的空报告。
func (c *Classifier) Evaluate(records []model.InteractionRecord) model.EvaluationReport {
	if len(records) == 0 {
		return model.EvaluationReport{
			FSMMetrics: c.Efficiency(nil),
			Summary:    emptySessionSummary,
		}
	}

	stats := ComputeStats(records)
	cls := c.ClassifyStats(stats)
	metrics := c.Efficiency(records)

	report := model.EvaluationReport{
		Confidence: int(math.Round(cls.Confidence)),
		FSMMetrics: metrics,
		SessionStats: model.SessionStatsSummary{
			PositiveRatioPct: int(math.Round(stats.PositiveRatio * 100)),
			NegativeRatioPct: int(math.Round(stats.NegativeRatio * 100)),
			TotalSteps:       stats.TotalSteps,
			MaxEscalations:   stats.MaxEscalations,
		},
	}
	if cls.Scenario.ID != "" {
		ref := cls.Scenario.Ref()
		report.ScenarioClassification = &ref
	}
	report.Summary = Summarize(cls.Scenario.Name, cls.Confidence, metrics)
	return report
}

// Summarize 按固定阈值拼接文字摘要。
func Summarize(scenarioName string, confidence float64, m model.FSMMetrics) string {
	if scenarioName == "" {
		scenarioName = "unknown"
	}

	var parts []string
	switch {
	case confidence >= strongMatchConfidence:
		parts = append(parts, fmt.Sprintf("Session is a strong match for the '%s' profile.", scenarioName))
	case confidence >= partialMatchConfidence:
		parts = append(parts, fmt.Sprintf("Session is a partial match for the '%s' profile.", scenarioName))
	default:
		parts = append(parts, "Session is no typical match for any reference profile.")
	}

	if m.ReachedFinalState {
		if m.EfficiencyScore >= efficientScore {
			parts = append(parts, "Progress through the phases was efficient.")
		} else {
			parts = append(parts, "Progress through the phases took longer than necessary.")
		}
	} else {
		parts = append(parts, "Session did not reach the final phase.")
	}

	if m.BackwardMoves > manyBackwardMoves {
		parts = append(parts, fmt.Sprintf("Detected %d returns to earlier phases.", m.BackwardMoves))
	}
	return strings.Join(parts, " ")
}
