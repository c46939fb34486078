package orchestrator

import (
	"time"

	"robot-coach/server/internal/model"
	"robot-coach/server/internal/phase"
	"robot-coach/server/internal/rules"
)

// 固定台词。
const (
	GreetingText   = "Hello! Nice to see you! Whenever you're ready, we can start."
	FallbackText   = "I'm not sure how to react to that."
	SuggestEndText = "I noticed this is getting hard. Would you like to finish, or continue after a break?"
	ClosingText    = "Okay, let's wrap up. Thank you for taking part! 👋"
)

// Step 是一次触发的归约结果。
type Step struct {
	Snapshot phase.Snapshot
	Record   model.InteractionRecord
	Result   model.TransitionResult
}

// Reduce 只做“事实归约”，不触发外部调用。
// 触发器先经规则目录解析为意图（未匹配时使用 Unknown 与兜底台词），再交给状态机转移。
func Reduce(m phase.Machine, cat *rules.Catalog, sessionID string, prev phase.Snapshot, trigger string, now time.Time) Step {
	intent := phase.UnknownIntent()
	responseText := FallbackText
	var speechAct, priority string

	if rule, ok := cat.Select(trigger); ok {
		intent = phase.IntentForRule(rule)
		responseText = rule.ResponseText
		speechAct = rule.SpeechAct
		priority = string(rule.Priority)
	}

	next := m.Apply(prev, intent)

	rec := model.InteractionRecord{
		SessionID:       sessionID,
		StepNumber:      next.StepCount,
		StateBefore:     prev.State,
		StateAfter:      next.State,
		Trigger:         trigger,
		InferredIntent:  intent.Label,
		SpeechAct:       speechAct,
		ResponseText:    responseText,
		Priority:        priority,
		EscalationTotal: next.TotalEscalations(),
		Timestamp:       now,
	}

	res := resultFor(sessionID, prev.State, next)
	res.SpeechAct = speechAct
	res.ResponseText = responseText
	if next.ShouldSuggestEnd && next.EndReason == model.EndReasonMaxEscalations {
		res.Suggestion = SuggestEndText
	}

	return Step{Snapshot: next, Record: rec, Result: res}
}

func resultFor(sessionID string, previous model.State, next phase.Snapshot) model.TransitionResult {
	return model.TransitionResult{
		SessionID:        sessionID,
		PreviousState:    previous,
		NewState:         next.State,
		TotalEscalations: next.TotalEscalations(),
		StepCount:        next.StepCount,
		IsFinal:          next.IsFinal(),
		ShouldSuggestEnd: next.ShouldSuggestEnd,
		EndReason:        next.EndReason,
	}
}
