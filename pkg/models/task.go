package models

import "time"

type TaskStateType string

const (
	RegisteredTaskState TaskStateType = "registered"
	RunningTaskState    TaskStateType = "running"
	SuccessTaskState    TaskStateType = "success"
	ErrorTaskState      TaskStateType = "error"
)

// TaskState is the tagged state of an execution task. Result is set only for
// success, Error only for error.
type TaskState struct {
	Type   TaskStateType `json:"type" db:"state"`
	Result string        `json:"result,omitempty" db:"result"`
	Error  string        `json:"error,omitempty" db:"error_msg"`
}

// Terminal reports whether no further transitions are allowed from the state.
func (s TaskState) Terminal() bool {
	return s.Type == SuccessTaskState || s.Type == ErrorTaskState
}

func Registered() TaskState {
	return TaskState{Type: RegisteredTaskState}
}

func Running() TaskState {
	return TaskState{Type: RunningTaskState}
}

func Success(result string) TaskState {
	return TaskState{Type: SuccessTaskState, Result: result}
}

func Failed(errMsg string) TaskState {
	return TaskState{Type: ErrorTaskState, Error: errMsg}
}

// ExecutionTask is one durable record of a single attempt to run an agent.
// Agent and Model are full copies taken at creation time, not references:
// edits to the live agent must never change an in-flight or historical task.
type ExecutionTask struct {
	ID        string    `json:"id" db:"id"`
	AgentID   string    `json:"agent_id" db:"agent_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Agent     Agent     `json:"agent"`
	Model     ModelRef  `json:"model"`
	State     TaskState `json:"state"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
