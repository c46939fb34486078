package rules

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"robot-coach/server/internal/model"
)

// TestSelectPrefersHighestPriority 验证同一触发器有多条规则时选择优先级最高的规则。
// 场景：error 触发器有 Medium 与 Critical 两条规则，应返回 Critical。
func TestSelectPrefersHighestPriority(t *testing.T) {
	c := NewCatalog([]Rule{
		{Trigger: "error", InferredIntent: "Error", Priority: model.PriorityMedium, ResponseText: "medium"},
		{Trigger: "error", InferredIntent: IntentRequestHelp, Priority: model.PriorityCritical, ResponseText: "critical"},
	})

	r, ok := c.Select("error")
	if !ok {
		t.Fatalf("expected rule for error")
	}
	if r.Priority != model.PriorityCritical || r.ResponseText != "critical" {
		t.Fatalf("expected critical rule, got %+v", r)
	}
}

// TestSelectTieKeepsDefinitionOrder 验证同优先级时选择定义更早的规则。
func TestSelectTieKeepsDefinitionOrder(t *testing.T) {
	c := NewCatalog([]Rule{
		{Trigger: "greet", Priority: model.PriorityLow, ResponseText: "low"},
		{Trigger: "greet", Priority: model.PriorityHigh, ResponseText: "first"},
		{Trigger: "greet", Priority: model.PriorityHigh, ResponseText: "second"},
	})

	r, ok := c.Select("greet")
	if !ok {
		t.Fatalf("expected rule for greet")
	}
	if r.ResponseText != "first" {
		t.Fatalf("expected earliest high rule, got %q", r.ResponseText)
	}
}

// TestSelectUnknownTrigger 验证未知触发器返回未匹配而不是错误。
func TestSelectUnknownTrigger(t *testing.T) {
	c := Default()
	for _, trigger := range []string{"", "does not exist", "ERROR", "greet "} {
		if _, ok := c.Select(trigger); ok {
			t.Fatalf("expected no match for %q", trigger)
		}
	}
}

// TestTriggersSortedAndDistinct 验证触发器列表去重且有序。
func TestTriggersSortedAndDistinct(t *testing.T) {
	c := NewCatalog([]Rule{
		{Trigger: "b", Priority: model.PriorityLow},
		{Trigger: "a", Priority: model.PriorityLow},
		{Trigger: "b", Priority: model.PriorityHigh},
	})

	got := c.Triggers()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected triggers: %v", got)
	}

	got[0] = "mutated"
	if c.Triggers()[0] != "a" {
		t.Fatalf("expected Triggers to return a copy")
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if c.Len() != 14 {
		t.Fatalf("expected 14 default rules, got %d", c.Len())
	}
	triggers := c.Triggers()
	if !sort.StringsAreSorted(triggers) {
		t.Fatalf("expected sorted triggers: %v", triggers)
	}

	r, ok := c.Select("error")
	if !ok || r.Priority != model.PriorityCritical {
		t.Fatalf("expected critical error rule, got %+v ok=%v", r, ok)
	}
	if r.ConfidenceThreshold == nil || *r.ConfidenceThreshold != 0.90 {
		t.Fatalf("expected confidence threshold 0.90")
	}
}

// TestGroupsUseCatalogTags 验证分组来自目录中的标签而不是触发器文本。
func TestGroupsUseCatalogTags(t *testing.T) {
	groups := Default().Groups()

	contains := func(list []string, s string) bool {
		for _, v := range list {
			if v == s {
				return true
			}
		}
		return false
	}

	if !contains(groups[GroupNegative], "error") {
		t.Fatalf("expected error in negative group: %v", groups[GroupNegative])
	}
	if !contains(groups[GroupPositive], "greet") {
		t.Fatalf("expected greet in positive group: %v", groups[GroupPositive])
	}
	if !contains(groups[GroupFeedback], "end of user speech") {
		t.Fatalf("expected feedback trigger in feedback group")
	}
	if !contains(groups[GroupNeutral], "assist") {
		t.Fatalf("expected assist in neutral group")
	}

	total := 0
	for _, g := range Groups {
		total += len(groups[g])
	}
	if total != len(Default().Triggers()) {
		t.Fatalf("expected every trigger grouped once, got %d", total)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
rules:
  - trigger: nod
    inferred_intent: Positive affect
    priority: Low
    speech_act: Expressive
    response_text: Nice.
    group: positive
  - trigger: nod
    inferred_intent: Positive affect
    priority: High
    speech_act: Expressive
    response_text: Great!
    confidence_threshold: 0.7
  - trigger: yawn
    inferred_intent: Disengagement risk
    priority: Medium
    response_text: Tired?
    group: negative
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	r, ok := c.Select("nod")
	if !ok || r.ResponseText != "Great!" {
		t.Fatalf("expected high priority nod rule, got %+v", r)
	}
	if r.Group != GroupNeutral {
		t.Fatalf("expected missing group defaulted to neutral, got %q", r.Group)
	}
	if r.ConfidenceThreshold == nil || *r.ConfidenceThreshold != 0.7 {
		t.Fatalf("expected confidence threshold parsed")
	}
}

func TestParseRejectsInvalidRules(t *testing.T) {
	cases := map[string]string{
		"empty":        "rules: []",
		"no trigger":   "rules:\n  - priority: High\n",
		"bad priority": "rules:\n  - trigger: x\n    priority: Urgent\n",
		"bad group":    "rules:\n  - trigger: x\n    priority: High\n    group: angry\n",
		"bad yaml":     "rules: [",
	}
	for name, content := range cases {
		if _, err := Parse([]byte(content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

// TestShippedRulesMatchDefault 验证 configs/rules.yaml 与内置目录一致。
func TestShippedRulesMatchDefault(t *testing.T) {
	c, err := LoadFile(filepath.Join("..", "..", "configs", "rules.yaml"))
	if err != nil {
		t.Fatalf("load shipped rules: %v", err)
	}
	def := Default()
	if c.Len() != def.Len() {
		t.Fatalf("expected %d rules, got %d", def.Len(), c.Len())
	}
	for _, want := range def.Rules() {
		got, ok := c.Select(want.Trigger)
		if !ok {
			t.Fatalf("trigger %q missing from shipped rules", want.Trigger)
		}
		if got.InferredIntent != want.InferredIntent || got.Priority != want.Priority ||
			got.ResponseText != want.ResponseText || got.Group != want.Group ||
			got.EscalatedAction != want.EscalatedAction {
			t.Fatalf("trigger %q differs: %+v vs %+v", want.Trigger, got, want)
		}
	}
}
