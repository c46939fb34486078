package evaluation

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"robot-coach/server/internal/model"
	"robot-coach/server/internal/rules"
)

func rec(after model.State, intent string, escalations int) model.InteractionRecord {
	return model.InteractionRecord{StateAfter: after, InferredIntent: intent, EscalationTotal: escalations}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeStatsEmpty(t *testing.T) {
	st := ComputeStats(nil)
	if st.TotalSteps != 0 || st.PositiveRatio != 0 || st.NegativeRatio != 0 || st.FinalState != "" {
		t.Fatalf("expected zero stats, got %+v", st)
	}
	if st.UniqueIntents == nil {
		t.Fatalf("expected non-nil unique intents")
	}
}

func TestComputeStats(t *testing.T) {
	records := []model.InteractionRecord{
		rec(model.StateExplanation, rules.IntentPositiveAffect, 0),
		rec(model.StateExplanation, rules.IntentFrustrated, 1),
		rec(model.StateExercise, rules.IntentRequestHelp, 1),
		rec(model.StateBreak, rules.IntentDisengagement, 2),
	}
	records[0].Trigger = "greet"

	st := ComputeStats(records)
	if st.TotalSteps != 4 {
		t.Fatalf("expected 4 steps, got %d", st.TotalSteps)
	}
	if !approx(st.PositiveRatio, 0.25) || !approx(st.NegativeRatio, 0.5) {
		t.Fatalf("unexpected ratios: %v / %v", st.PositiveRatio, st.NegativeRatio)
	}
	if st.MaxEscalations != 2 || st.FinalState != model.StateBreak {
		t.Fatalf("unexpected max escalations/final state: %d %s", st.MaxEscalations, st.FinalState)
	}
	if len(st.UniqueIntents) != 4 || st.Triggers[0] != "greet" || len(st.Intents) != 4 {
		t.Fatalf("unexpected intents/triggers: %+v", st)
	}
}

// TestIntentCategorySets 验证统计用的正负意图集合：目录标签与描述性短标签都被识别，
// 请求帮助与注意力转移不计入任何一边。
func TestIntentCategorySets(t *testing.T) {
	for _, label := range []string{rules.IntentPositiveAffect, "Positive Affect", "Greeting"} {
		if !IsPositiveIntent(label) || IsNegativeIntent(label) {
			t.Fatalf("expected %q to be positive only", label)
		}
	}
	for _, label := range []string{rules.IntentFrustrated, rules.IntentDisengagement, rules.IntentConfused, "Stress"} {
		if !IsNegativeIntent(label) || IsPositiveIntent(label) {
			t.Fatalf("expected %q to be negative only", label)
		}
	}
	for _, label := range []string{rules.IntentRequestHelp, rules.IntentAttentionShift, rules.IntentFeedback, model.IntentUnknown} {
		if IsPositiveIntent(label) || IsNegativeIntent(label) {
			t.Fatalf("expected %q to be neutral", label)
		}
	}
}

// TestScoreCalmSessionFullMatch 验证完全符合条件的会话得满分并被选为最佳匹配。
func TestScoreCalmSessionFullMatch(t *testing.T) {
	c := NewClassifier(nil, DefaultWeights())
	st := Stats{PositiveRatio: 0.8, MaxEscalations: 0, FinalState: model.StateFeedback, UniqueIntents: map[string]bool{}}

	calm, _ := c.Scenario("calm")
	if got := c.Score(st, calm); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}

	cls := c.ClassifyStats(st)
	if cls.Scenario.ID != "calm" || cls.Confidence != 100 {
		t.Fatalf("expected calm with 100, got %s %v", cls.Scenario.ID, cls.Confidence)
	}
}

func TestScorePartialCredit(t *testing.T) {
	c := NewClassifier(nil, DefaultWeights())

	cases := []struct {
		name string
		ch   Characteristics
		st   Stats
		want float64
	}{
		{
			name: "ratio min partial",
			ch:   Characteristics{PositiveRatioMin: f64(0.5)},
			st:   Stats{PositiveRatio: 0.25},
			want: 50,
		},
		{
			name: "ratio max decay",
			ch:   Characteristics{PositiveRatioMax: f64(0.4)},
			st:   Stats{PositiveRatio: 0.6},
			want: 60,
		},
		{
			name: "ratio max floor",
			ch:   Characteristics{PositiveRatioMax: f64(0.1)},
			st:   Stats{PositiveRatio: 1},
			want: 0,
		},
		{
			name: "escalation ceiling decay",
			ch:   Characteristics{MaxEscalations: intp(1)},
			st:   Stats{MaxEscalations: 3},
			want: 20,
		},
		{
			name: "escalation floor",
			ch:   Characteristics{MinEscalations: intp(3)},
			st:   Stats{MaxEscalations: 2},
			want: 0,
		},
		{
			name: "final state mismatch",
			ch:   Characteristics{ExpectedFinalState: statep(model.StateFeedback)},
			st:   Stats{FinalState: model.StateBreak},
			want: 0,
		},
		{
			name: "typical intents half",
			ch:   Characteristics{TypicalIntents: []string{"a", "b"}},
			st:   Stats{UniqueIntents: map[string]bool{"a": true, "c": true}},
			want: 50,
		},
		{
			name: "no predicates",
			ch:   Characteristics{},
			st:   Stats{},
			want: 50,
		},
		{
			name: "mixed",
			ch: Characteristics{
				PositiveRatioMin:   f64(0.7),
				MaxEscalations:     intp(1),
				ExpectedFinalState: statep(model.StateFeedback),
			},
			st:   Stats{PositiveRatio: 0.35, MaxEscalations: 3, FinalState: model.StateBreak},
			want: 100 * 17.5 / 75,
		},
	}

	for _, tc := range cases {
		got := c.Score(tc.st, Scenario{ID: tc.name, Characteristics: tc.ch})
		if !approx(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

// TestScoresWithinRange 验证分数总在 [0,100]。
func TestScoresWithinRange(t *testing.T) {
	c := NewClassifier(nil, DefaultWeights())
	for _, ratio := range []float64{0, 0.1, 0.3, 0.5, 0.9, 1} {
		for esc := 0; esc < 12; esc++ {
			for _, final := range model.StateOrder {
				st := Stats{
					PositiveRatio:  ratio,
					MaxEscalations: esc,
					FinalState:     final,
					UniqueIntents:  map[string]bool{rules.IntentConfused: true},
				}
				for _, sc := range c.Scenarios() {
					if s := c.Score(st, sc); s < 0 || s > 100 {
						t.Fatalf("score out of range for %s: %v", sc.ID, s)
					}
				}
			}
		}
	}
}

func TestClassifyTieKeepsCatalogOrder(t *testing.T) {
	c := NewClassifier([]Scenario{
		{ID: "first", Characteristics: Characteristics{MaxEscalations: intp(1)}},
		{ID: "second", Characteristics: Characteristics{MaxEscalations: intp(2)}},
	}, Weights{})

	cls, ok := c.Classify([]model.InteractionRecord{rec(model.StateExplanation, "x", 0)})
	if !ok || cls.Scenario.ID != "first" {
		t.Fatalf("expected first scenario on tie, got %q ok=%v", cls.Scenario.ID, ok)
	}
}

func TestClassifyEmpty(t *testing.T) {
	c := NewClassifier(nil, DefaultWeights())
	cls, ok := c.Classify(nil)
	if ok || cls.Confidence != 0 {
		t.Fatalf("expected no classification, got %+v ok=%v", cls, ok)
	}
}

func TestEfficiency(t *testing.T) {
	c := NewClassifier(nil, DefaultWeights())

	m := c.Efficiency([]model.InteractionRecord{
		rec(model.StateExplanation, "", 0),
		rec(model.StateExercise, "", 0),
		rec(model.StateBreak, "", 0),
		rec(model.StateExercise, "", 0),
		rec(model.StateFeedback, "", 0),
	})
	if m.ForwardMoves != 4 || m.BackwardMoves != 1 {
		t.Fatalf("expected 4 forward / 1 backward, got %d / %d", m.ForwardMoves, m.BackwardMoves)
	}
	if m.LinearityScore != 80 || m.EfficiencyScore != 100 || !m.ReachedFinalState {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if m.UniqueStatesVisited != 4 || m.StateDistribution[model.StateExercise] != 2 {
		t.Fatalf("unexpected distribution: %+v", m.StateDistribution)
	}
}

func TestEfficiencyLongAndUnfinished(t *testing.T) {
	c := NewClassifier(nil, DefaultWeights())

	var long []model.InteractionRecord
	for i := 0; i < 9; i++ {
		long = append(long, rec(model.StateExercise, "", 0))
	}
	long = append(long, rec(model.StateFeedback, "", 0))
	if m := c.Efficiency(long); m.EfficiencyScore != 50 {
		t.Fatalf("expected efficiency 50, got %d", m.EfficiencyScore)
	}

	if m := c.Efficiency(long[:3]); m.EfficiencyScore != 0 || m.ReachedFinalState {
		t.Fatalf("expected zero efficiency without final state, got %+v", m)
	}

	m := c.Efficiency([]model.InteractionRecord{rec("LEGACY", "", 0)})
	if m.LinearityScore != 100 || m.ForwardMoves != 0 {
		t.Fatalf("expected linearity 100 without movement, got %+v", m)
	}
}

// TestEvaluateCalmSession 验证一次平稳会话的完整报告。
func TestEvaluateCalmSession(t *testing.T) {
	c := NewClassifier(nil, DefaultWeights())
	records := []model.InteractionRecord{
		rec(model.StateExplanation, rules.IntentPositiveAffect, 0),
		rec(model.StateExercise, rules.IntentPositiveAffect, 0),
		rec(model.StateExercise, rules.IntentPositiveAffect, 0),
		rec(model.StateFeedback, rules.IntentFeedback, 0),
	}

	r := c.Evaluate(records)
	if r.BestScenarioID() != "calm" || r.Confidence != 100 {
		t.Fatalf("expected calm/100, got %q/%d", r.BestScenarioID(), r.Confidence)
	}
	if r.SessionStats.PositiveRatioPct != 75 || r.SessionStats.TotalSteps != 4 {
		t.Fatalf("unexpected session stats: %+v", r.SessionStats)
	}
	if !strings.Contains(r.Summary, "strong match") || !strings.Contains(r.Summary, "efficient") {
		t.Fatalf("unexpected summary: %q", r.Summary)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	r := NewClassifier(nil, DefaultWeights()).Evaluate(nil)
	if r.ScenarioClassification != nil || r.Confidence != 0 {
		t.Fatalf("expected empty report, got %+v", r)
	}
	if r.Summary != emptySessionSummary {
		t.Fatalf("unexpected summary: %q", r.Summary)
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize("Calm", 55, model.FSMMetrics{BackwardMoves: 3})
	for _, want := range []string{"partial match", "did not reach", "Detected 3 returns"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
	if got := Summarize("", 10, model.FSMMetrics{ReachedFinalState: true, EfficiencyScore: 40}); !strings.Contains(got, "no typical match") || !strings.Contains(got, "longer") {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestWeightsOverride(t *testing.T) {
	c := NewClassifier(nil, Weights{EscalationSlope: 5})
	got := c.Score(Stats{MaxEscalations: 3}, Scenario{Characteristics: Characteristics{MaxEscalations: intp(1)}})
	if !approx(got, 60) {
		t.Fatalf("expected 60 with slope 5, got %v", got)
	}
}

func TestLoadScenarios(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenarios.yaml")
	content := `
scenarios:
  - id: calm
    name: Calm
    characteristics:
      positive_ratio_min: 0.7
      expected_final_state: S4_FEEDBACK
  - id: stressed
    name: Stressed
    characteristics:
      min_escalations: 2
      typical_intents: ["User frustrated / overloaded"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scenarios: %v", err)
	}

	scenarios, err := LoadScenarios(path)
	if err != nil {
		t.Fatalf("load scenarios: %v", err)
	}
	if len(scenarios) != 2 || scenarios[0].ID != "calm" {
		t.Fatalf("unexpected scenarios: %+v", scenarios)
	}
	ch := scenarios[0].Characteristics
	if ch.PositiveRatioMin == nil || *ch.PositiveRatioMin != 0.7 || ch.MaxEscalations != nil {
		t.Fatalf("unexpected characteristics: %+v", ch)
	}
	if ch.ExpectedFinalState == nil || *ch.ExpectedFinalState != model.StateFeedback {
		t.Fatalf("expected final state parsed")
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("scenarios:\n  - id: a\n  - id: a\n"), 0o644)
	if _, err := LoadScenarios(bad); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

// TestShippedScenariosMatchDefault 验证 configs/scenarios.yaml 与内置场景一致。
func TestShippedScenariosMatchDefault(t *testing.T) {
	shipped, err := LoadScenarios(filepath.Join("..", "..", "configs", "scenarios.yaml"))
	if err != nil {
		t.Fatalf("load shipped scenarios: %v", err)
	}
	def := DefaultScenarios()
	if len(shipped) != len(def) {
		t.Fatalf("expected %d scenarios, got %d", len(def), len(shipped))
	}

	st := ComputeStats([]model.InteractionRecord{
		rec(model.StateExplanation, rules.IntentPositiveAffect, 0),
		rec(model.StateBreak, rules.IntentFrustrated, 1),
		rec(model.StateBreak, rules.IntentConfused, 2),
	})
	a := NewClassifier(shipped, DefaultWeights())
	b := NewClassifier(def, DefaultWeights())
	for i := range def {
		if shipped[i].ID != def[i].ID {
			t.Fatalf("scenario %d: id %q vs %q", i, shipped[i].ID, def[i].ID)
		}
		if !approx(a.Score(st, shipped[i]), b.Score(st, def[i])) {
			t.Fatalf("scenario %s scores differently", def[i].ID)
		}
	}
}
