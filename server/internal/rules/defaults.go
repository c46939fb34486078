package rules

import "robot-coach/server/internal/model"

// 规则中出现的意图标签。
const (
	IntentPositiveAffect = "Positive affect"
	IntentConfused       = "User confused / waiting"
	IntentFrustrated     = "User frustrated / overloaded"
	IntentRequestHelp    = "Request to speak/help"
	IntentAttentionShift = "Attention shift"
	IntentDisengagement  = "Disengagement risk"
	IntentFeedback       = "Provide action / speech feedback"
)

func threshold(v float64) *float64 { return &v }

// Default 返回内置的规则目录。
func Default() *Catalog {
	return NewCatalog(defaultRules())
}

func defaultRules() []Rule {
	return []Rule{
		{
			Trigger:             "Long silence after robot prompt",
			InferredIntent:      IntentConfused,
			Priority:            model.PriorityMedium,
			ConfidenceThreshold: threshold(0.60),
			SpeechAct:           "Directive (clarify)",
			ResponseText:        "Do you want me to repeat that?",
			Group:               GroupNegative,
		},
		{
			Trigger:             "User face stressed",
			InferredIntent:      IntentFrustrated,
			Priority:            model.PriorityMedium,
			ConfidenceThreshold: threshold(0.60),
			SpeechAct:           "Expressive + Commissive",
			ResponseText:        "You look stressed, shall I slow down?",
			Group:               GroupNegative,
		},
		{
			Trigger:             "Hand raised while looking at robot",
			InferredIntent:      IntentRequestHelp,
			Priority:            model.PriorityMedium,
			ConfidenceThreshold: threshold(0.60),
			SpeechAct:           "Acknowledgement + Directive",
			ResponseText:        "Yes, go ahead. What do you need?",
			Group:               GroupNeutral,
		},
		{
			Trigger:             "User looks away to another person",
			InferredIntent:      IntentAttentionShift,
			Priority:            model.PriorityMedium,
			ConfidenceThreshold: threshold(0.60),
			SpeechAct:           "Assertive",
			ResponseText:        "I'll wait while you talk to them.",
			Group:               GroupNeutral,
		},
		{
			Trigger:             "User smiles/laughs",
			InferredIntent:      IntentPositiveAffect,
			Priority:            model.PriorityMedium,
			ConfidenceThreshold: threshold(0.60),
			SpeechAct:           "Expressive",
			ResponseText:        "Haha, that's funny!",
			Group:               GroupPositive,
		},
		{
			Trigger:             "User leans back / crosses arms",
			InferredIntent:      IntentDisengagement,
			Priority:            model.PriorityMedium,
			ConfidenceThreshold: threshold(0.60),
			SpeechAct:           "Commissive/Expressive",
			ResponseText:        "Should we take a short break?",
			Group:               GroupNegative,
		},
		{
			Trigger:             "greet",
			InferredIntent:      IntentPositiveAffect,
			Priority:            model.PriorityHigh,
			ConfidenceThreshold: threshold(0.75),
			EscalatedAction:     "Call for help",
			SpeechAct:           "Commissive/Expressive",
			ResponseText:        "Hello! Nice to see you!",
			Group:               GroupPositive,
		},
		{
			Trigger:             "assist",
			InferredIntent:      IntentRequestHelp,
			Priority:            model.PriorityMedium,
			ConfidenceThreshold: threshold(0.60),
			EscalatedAction:     "Call for help",
			SpeechAct:           "Expressive",
			ResponseText:        "I'm here to help. What do you need?",
			Group:               GroupNeutral,
		},
		{
			// 意图按求助处理，状态机把它当作 Other；界面上归到负面组。
			Trigger:             "error",
			InferredIntent:      IntentRequestHelp,
			Priority:            model.PriorityCritical,
			ConfidenceThreshold: threshold(0.90),
			EscalatedAction:     "Shutdown safely",
			SpeechAct:           "Commissive/Expressive",
			ResponseText:        "An error occurred. Retrying operation...",
			Group:               GroupNegative,
		},
		{
			Trigger:             "long time being still",
			InferredIntent:      IntentConfused,
			Priority:            model.PriorityHigh,
			ConfidenceThreshold: threshold(0.60),
			SpeechAct:           "Commissive/Expressive",
			ResponseText:        "You've been still for a while. Do you need help?",
			Group:               GroupNegative,
		},
		{
			Trigger:             "end of user speech",
			InferredIntent:      IntentFeedback,
			Priority:            model.PriorityMedium,
			ConfidenceThreshold: threshold(0.60),
			SpeechAct:           "Expressive + Commissive",
			ResponseText:        "I understand. Let me continue with the next step.",
			Group:               GroupFeedback,
		},
		{
			Trigger:             "end of user movement",
			InferredIntent:      IntentFeedback,
			Priority:            model.PriorityMedium,
			ConfidenceThreshold: threshold(0.60),
			SpeechAct:           "Expressive + Commissive",
			ResponseText:        "Good movement! Here's what's next.",
			Group:               GroupFeedback,
		},
		{
			Trigger:             "system event: cognitive game phase X",
			InferredIntent:      IntentFeedback,
			Priority:            model.PriorityMedium,
			ConfidenceThreshold: threshold(0.60),
			SpeechAct:           "Expressive + Commissive",
			ResponseText:        "Let's proceed to the next phase of the cognitive game.",
			Group:               GroupFeedback,
		},
		{
			Trigger:             "system event: IoT / Smart home event",
			InferredIntent:      IntentFeedback,
			Priority:            model.PriorityMedium,
			ConfidenceThreshold: threshold(0.60),
			SpeechAct:           "Expressive + Commissive",
			ResponseText:        "I detected a smart home event. Processing...",
			Group:               GroupFeedback,
		},
	}
}
