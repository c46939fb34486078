package model

import "time"

// State 表示对话阶段状态机中的一个阶段。
// 字符串值即持久化格式，记录与快照中都直接存这个值。
type State string

const (
	StateGreeting    State = "S0_GREETING"    // 问候
	StateExplanation State = "S1_EXPLANATION" // 讲解任务
	StateExercise    State = "S2_EXERCISE"    // 练习（循环）
	StateBreak       State = "S3_BREAK"       // 休息 / 转移注意力
	StateFeedback    State = "S4_FEEDBACK"    // 反馈 / 结束（终态）
)

// StateOrder 是阶段的规范顺序，线性度评估按这个顺序计算前进/后退。
var StateOrder = []State{
	StateGreeting,
	StateExplanation,
	StateExercise,
	StateBreak,
	StateFeedback,
}

// Index 返回状态在规范顺序中的位置，未知状态返回 -1。
func (s State) Index() int {
	for i, st := range StateOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid 判断是否是已知状态。
func (s State) Valid() bool {
	return s.Index() >= 0
}

// Priority 规则优先级。
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// Rank 返回优先级数值（Critical=4 … Low=1），未知优先级为 0。
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid 判断是否是已知优先级。
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

const (
	// IntentUnknown 是触发器没有匹配规则时调用方填入的默认意图。
	IntentUnknown = "Unknown"

	EndReasonSuccessSteps   = "success_steps"
	EndReasonMaxEscalations = "max_escalations"
	EndReasonForced         = "forced"
)

// TriggerEvent 是入站的触发事件。
type TriggerEvent struct {
	Trigger string `json:"trigger"`
	// StepCount 可选：客户端期望的当前步数，用于乐观并发校验。
	StepCount *int `json:"step_count,omitempty"`
}

// InteractionRecord 是一次触发事件的追加式记录。
// 由编排器生成，由 timeline 存储持久化；评估只读取有序的记录序列。
type InteractionRecord struct {
	// Seq 由存储分配，单个 session 内单调递增。
	Seq       int64  `json:"seq,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	StepNumber     int    `json:"step_number"`
	StateBefore    State  `json:"state_before"`
	StateAfter     State  `json:"state_after"`
	Trigger        string `json:"trigger"`
	InferredIntent string `json:"inferred_intent"`
	SpeechAct      string `json:"speech_act,omitempty"`
	ResponseText   string `json:"response_text"`
	Priority       string `json:"priority,omitempty"`
	// EscalationTotal 是本步之后的升级总数。
	EscalationTotal int `json:"escalation_total_at_step"`

	Timestamp time.Time `json:"timestamp"`
}

// TransitionResult 是一次触发处理后返回给调用方的结果。
type TransitionResult struct {
	SessionID        string `json:"session_id"`
	PreviousState    State  `json:"previous_state"`
	NewState         State  `json:"new_state"`
	TotalEscalations int    `json:"total_escalations"`
	StepCount        int    `json:"step_count"`
	IsFinal          bool   `json:"is_final"`
	ShouldSuggestEnd bool   `json:"should_suggest_end"`
	EndReason        string `json:"end_reason"`
	SpeechAct        string `json:"speech_act,omitempty"`
	ResponseText     string `json:"response_text"`
	// Suggestion 仅在升级过多时给出，由前端决定是否弹出结束提示。
	Suggestion string `json:"suggestion,omitempty"`
}

// ScenarioRef 是评估报告中的场景引用。
type ScenarioRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FSMMetrics 描述一次会话在阶段之间的移动效率。
type FSMMetrics struct {
	StateDistribution   map[State]int `json:"state_distribution"`
	TotalSteps          int           `json:"total_steps"`
	UniqueStatesVisited int           `json:"unique_states_visited"`
	ReachedFinalState   bool          `json:"reached_final_state"`
	LinearityScore      int           `json:"linearity_score"`
	EfficiencyScore     int           `json:"efficiency_score"`
	ForwardMoves        int           `json:"forward_moves"`
	BackwardMoves       int           `json:"backward_moves"`
}

// SessionStatsSummary 是报告中展示用的会话统计（百分比已取整）。
type SessionStatsSummary struct {
	PositiveRatioPct int `json:"positive_ratio_pct"`
	NegativeRatioPct int `json:"negative_ratio_pct"`
	TotalSteps       int `json:"total_steps"`
	MaxEscalations   int `json:"max_escalations"`
}

// EvaluationReport 是按需生成的回顾式评估报告。
type EvaluationReport struct {
	ScenarioClassification *ScenarioRef        `json:"scenario_classification"`
	Confidence             int                 `json:"confidence"`
	FSMMetrics             FSMMetrics          `json:"fsm_metrics"`
	SessionStats           SessionStatsSummary `json:"session_stats"`
	Summary                string              `json:"summary"`
}

// BestScenarioID 返回最佳匹配场景 ID，没有分类时为空。
func (r EvaluationReport) BestScenarioID() string {
	if r.ScenarioClassification == nil {
		return ""
	}
	return r.ScenarioClassification.ID
}

// Rating 是用户对会话的 Likert（1-5）评价。
type Rating struct {
	Supportive     *int      `json:"supportive"`
	Understandable *int      `json:"understandable"`
	NonIntrusive   *int      `json:"non_intrusive"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}

// SessionSummary 是会话列表中的一项。
type SessionSummary struct {
	ID                 string     `json:"id"`
	StartedAt          time.Time  `json:"started_at"`
	EndedAt            *time.Time `json:"ended_at"`
	StepCount          int        `json:"step_count"`
	EscalationCount    int        `json:"escalation_count"`
	TriggersUsed       []string   `json:"triggers_used"`
	Completed          bool       `json:"completed"`
	HasEvaluation      bool       `json:"has_evaluation"`
	ScenarioType       string     `json:"scenario_type"`
	ScenarioConfidence int        `json:"scenario_confidence"`
}

// CreateSessionResponse 是创建会话的响应结构体。
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	State     State  `json:"state"`
	Greeting  string `json:"greeting"`
}

// SessionInfo 是会话详情中的元数据部分。
type SessionInfo struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Completed bool       `json:"completed"`
	State     State      `json:"state"`
	Rating    *Rating    `json:"rating"`
}

// TriggerCounters 按触发器所属分组统计交互次数。
type TriggerCounters struct {
	StepCount            int     `json:"step_count"`
	PositiveInteractions int     `json:"positive_interactions"`
	NegativeInteractions int     `json:"negative_interactions"`
	TotalEscalations     int     `json:"total_escalations"`
	PositiveRatio        float64 `json:"positive_ratio"`
	UniqueTriggers       int     `json:"unique_triggers"`
}

// SessionDetails 是单个会话的完整回顾视图。
type SessionDetails struct {
	Session      SessionInfo         `json:"session"`
	Interactions []InteractionRecord `json:"interactions"`
	Statistics   TriggerCounters     `json:"statistics"`
	Evaluation   EvaluationReport    `json:"evaluation"`
}
