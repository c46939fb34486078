package phase

import "robot-coach/server/internal/model"

// StateInfo 是界面展示用的阶段说明。
type StateInfo struct {
	State       model.State `json:"state"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
}

var stateInfo = map[model.State]StateInfo{
	model.StateGreeting: {
		State:       model.StateGreeting,
		Name:        "Greeting",
		Description: "The robot greets the user and opens the session.",
	},
	model.StateExplanation: {
		State:       model.StateExplanation,
		Name:        "Explanation",
		Description: "The robot explains the task and clarifies when the user struggles.",
	},
	model.StateExercise: {
		State:       model.StateExercise,
		Name:        "Exercise",
		Description: "The user works through the exercise while the robot encourages.",
	},
	model.StateBreak: {
		State:       model.StateBreak,
		Name:        "Break",
		Description: "A short break to recover attention before continuing.",
	},
	model.StateFeedback: {
		State:       model.StateFeedback,
		Name:        "Feedback",
		Description: "The robot summarises the session. No further transitions happen.",
	},
}

// Describe 返回阶段说明，未知阶段只带状态值。
func Describe(s model.State) StateInfo {
	if info, ok := stateInfo[s]; ok {
		return info
	}
	return StateInfo{State: s, Name: string(s)}
}
