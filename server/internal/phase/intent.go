package phase

import (
	"robot-coach/server/internal/model"
	"robot-coach/server/internal/rules"
)

// Category 是状态机使用的意图类别。
type Category int

const (
	CategoryOther Category = iota
	CategoryPositive
	CategoryNegative
	CategoryFeedbackTerminal
)

func (c Category) String() string {
	switch c {
	case CategoryPositive:
		return "positive"
	case CategoryNegative:
		return "negative"
	case CategoryFeedbackTerminal:
		return "feedback_terminal"
	default:
		return "other"
	}
}

// categoryTable 是意图标签到类别的固定成员表，不在表里的标签都是 Other。
var categoryTable = map[string]Category{
	rules.IntentPositiveAffect: CategoryPositive,
	rules.IntentFrustrated:     CategoryNegative,
	rules.IntentDisengagement:  CategoryNegative,
	rules.IntentFeedback:       CategoryFeedbackTerminal,
}

// Intent 是状态机的输入：原始标签用于升级计数，类别用于转移。
type Intent struct {
	Label    string
	Category Category
	// Weight 是负面意图每次计入的升级数，0 视为 1。
	Weight int
}

// ClassifyIntent 根据固定成员表把意图标签映射为 Intent。
func ClassifyIntent(label string) Intent {
	return Intent{Label: label, Category: categoryTable[label]}
}

// IntentForRule 把规则解析为 Intent，规则上的升级权重随之带入。
func IntentForRule(r rules.Rule) Intent {
	in := ClassifyIntent(r.InferredIntent)
	if r.EscalationWeight != nil && *r.EscalationWeight > 0 {
		in.Weight = *r.EscalationWeight
	}
	return in
}

// UnknownIntent 是触发器未匹配任何规则时使用的意图。
func UnknownIntent() Intent {
	return ClassifyIntent(model.IntentUnknown)
}

func (in Intent) weight() int {
	if in.Weight <= 0 {
		return 1
	}
	return in.Weight
}
