package evaluation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"robot-coach/server/internal/model"
	"robot-coach/server/internal/rules"
)

// Characteristics 是场景对会话统计的一组可选判定条件，nil 表示未定义。
type Characteristics struct {
	PositiveRatioMin   *float64     `yaml:"positive_ratio_min,omitempty" json:"positive_ratio_min,omitempty"`
	PositiveRatioMax   *float64     `yaml:"positive_ratio_max,omitempty" json:"positive_ratio_max,omitempty"`
	MaxEscalations     *int         `yaml:"max_escalations,omitempty" json:"max_escalations,omitempty"`
	MinEscalations     *int         `yaml:"min_escalations,omitempty" json:"min_escalations,omitempty"`
	ExpectedFinalState *model.State `yaml:"expected_final_state,omitempty" json:"expected_final_state,omitempty"`
	TypicalIntents     []string     `yaml:"typical_intents,omitempty" json:"typical_intents,omitempty"`
}

// Scenario 是一个参考行为画像。
type Scenario struct {
	ID              string          `yaml:"id" json:"id"`
	Name            string          `yaml:"name" json:"name"`
	Description     string          `yaml:"description" json:"description"`
	Characteristics Characteristics `yaml:"characteristics" json:"characteristics"`
}

// Ref 返回报告中使用的场景引用。
func (s Scenario) Ref() model.ScenarioRef {
	return model.ScenarioRef{ID: s.ID, Name: s.Name, Description: s.Description}
}

func f64(v float64) *float64 { return &v }

func intp(v int) *int { return &v }

func statep(s model.State) *model.State { return &s }

// DefaultScenarios 返回内置的参考场景，顺序即平局时的优先顺序。
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			ID:          "calm",
			Name:        "Calm session",
			Description: "The user stays positive and cooperative throughout the training.",
			Characteristics: Characteristics{
				PositiveRatioMin:   f64(0.7),
				MaxEscalations:     intp(1),
				ExpectedFinalState: statep(model.StateFeedback),
			},
		},
		{
			ID:          "confused",
			Name:        "Frequently confused",
			Description: "The user needs repetitions and extra explanation.",
			Characteristics: Characteristics{
				PositiveRatioMin: f64(0.3),
				PositiveRatioMax: f64(0.6),
				MaxEscalations:   intp(3),
				TypicalIntents:   []string{rules.IntentConfused, rules.IntentRequestHelp},
			},
		},
		{
			ID:          "distracted",
			Name:        "Distracted",
			Description: "The user often looks away and needs attention redirected.",
			Characteristics: Characteristics{
				PositiveRatioMin: f64(0.4),
				MaxEscalations:   intp(2),
				TypicalIntents:   []string{rules.IntentAttentionShift, rules.IntentDisengagement},
			},
		},
		{
			ID:          "stressed",
			Name:        "Under stress",
			Description: "The user shows signs of stress and overload.",
			Characteristics: Characteristics{
				PositiveRatioMax: f64(0.4),
				MinEscalations:   intp(2),
				TypicalIntents:   []string{rules.IntentFrustrated, rules.IntentDisengagement},
			},
		},
		{
			ID:          "critical",
			Name:        "Critical session",
			Description: "Many escalations, the session ended early.",
			Characteristics: Characteristics{
				PositiveRatioMax: f64(0.3),
				MinEscalations:   intp(3),
			},
		},
	}
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios 从 YAML 文件加载参考场景。
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}

	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("parse scenarios: no scenarios defined")
	}

	seen := make(map[string]bool, len(f.Scenarios))
	for i, s := range f.Scenarios {
		if s.ID == "" {
			return nil, fmt.Errorf("scenario %d: id required", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("scenario %d: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if st := s.Characteristics.ExpectedFinalState; st != nil && !st.Valid() {
			return nil, fmt.Errorf("scenario %s: unknown final state %q", s.ID, *st)
		}
	}
	return f.Scenarios, nil
}
