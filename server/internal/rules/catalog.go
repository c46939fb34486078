package rules

import (
	"sort"

	"robot-coach/server/internal/model"
)

// Group 是触发器在界面上的分组标签。
// 分组直接写在规则目录里，不再从触发器文本推断。
type Group string

const (
	GroupPositive Group = "positive"
	GroupNeutral  Group = "neutral"
	GroupNegative Group = "negative"
	GroupFeedback Group = "feedback"
)

// Groups 是界面分组的固定顺序。
var Groups = []Group{GroupPositive, GroupNeutral, GroupNegative, GroupFeedback}

func (g Group) valid() bool {
	for _, v := range Groups {
		if v == g {
			return true
		}
	}
	return false
}

// Rule 把一个触发器映射到推断意图和脚本化回应。
type Rule struct {
	Trigger        string         `yaml:"trigger" json:"trigger"`
	InferredIntent string         `yaml:"inferred_intent" json:"inferred_intent"`
	Priority       model.Priority `yaml:"priority" json:"priority"`
	SpeechAct      string         `yaml:"speech_act" json:"speech_act"`
	ResponseText   string         `yaml:"response_text" json:"response_text"`
	Group          Group          `yaml:"group" json:"group"`

	ConfidenceThreshold *float64 `yaml:"confidence_threshold,omitempty" json:"confidence_threshold,omitempty"`
	EscalationWeight    *int     `yaml:"escalation_weight,omitempty" json:"escalation_weight,omitempty"`
	EscalatedAction     string   `yaml:"escalated_action,omitempty" json:"escalated_action,omitempty"`
}

// Catalog 是只读的规则目录，进程启动时构建一次，之后可被任意会话并发读取。
type Catalog struct {
	rules []Rule
	// byTrigger 中每个触发器只保留胜出的规则在 rules 中的下标。
	byTrigger map[string]int
	triggers  []string
}

// NewCatalog 根据定义顺序构建目录。传入的切片会被复制。
func NewCatalog(rs []Rule) *Catalog {
	c := &Catalog{
		rules:     make([]Rule, len(rs)),
		byTrigger: make(map[string]int, len(rs)),
	}
	copy(c.rules, rs)

	for i, r := range c.rules {
		cur, ok := c.byTrigger[r.Trigger]
		if !ok {
			c.byTrigger[r.Trigger] = i
			c.triggers = append(c.triggers, r.Trigger)
			continue
		}
		// 严格大于才替换：同优先级保留定义更早的规则。
		if r.Priority.Rank() > c.rules[cur].Priority.Rank() {
			c.byTrigger[r.Trigger] = i
		}
	}
	sort.Strings(c.triggers)
	return c
}

// Triggers 返回去重后的触发器列表，按字典序排序。
func (c *Catalog) Triggers() []string {
	out := make([]string, len(c.triggers))
	copy(out, c.triggers)
	return out
}

// Select 查找触发器对应的规则。
// 没有匹配时返回 false，这是正常路径，调用方自行填入 Unknown 意图和兜底回应。
func (c *Catalog) Select(trigger string) (Rule, bool) {
	i, ok := c.byTrigger[trigger]
	if !ok {
		return Rule{}, false
	}
	return c.rules[i], true
}

// Rules 返回按定义顺序排列的全部规则副本。
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Len 返回规则条数。
func (c *Catalog) Len() int {
	return len(c.rules)
}

// Groups 按界面分组返回触发器，组内排序。
// 同一触发器有多条规则时，以胜出规则的分组为准。
func (c *Catalog) Groups() map[Group][]string {
	out := make(map[Group][]string, len(Groups))
	for _, g := range Groups {
		out[g] = []string{}
	}
	for _, t := range c.triggers {
		r := c.rules[c.byTrigger[t]]
		g := r.Group
		if !g.valid() {
			g = GroupNeutral
		}
		out[g] = append(out[g], t)
	}
	return out
}
