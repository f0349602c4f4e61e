// Package engine defines the contract with the external service that runs an
// agent's steps against a resolved model and authorized tools.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blueragesoftware/backend/pkg/models"
)

// RunRequest carries everything the engine needs for one execution.
type RunRequest struct {
	Instructions string                  `json:"instructions"`
	Steps        []Step                  `json:"steps"`
	Tools        []models.AuthorizedTool `json:"tools,omitempty"`
	Model        models.ResolvedModel    `json:"model"`
	InputFiles   []InputFile             `json:"input_files,omitempty"`
}

type Step struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type InputFile struct {
	URL  string          `json:"url"`
	Name string          `json:"name,omitempty"`
	Kind models.FileKind `json:"kind"`
}

// RunResult is the engine's final output for a completed execution.
type RunResult struct {
	FinalOutput string `json:"final_output"`
}

// Engine runs model inference and tool calls for one execution. No mid-flight
// cancellation is offered beyond the context: once dispatched, a run proceeds
// to completion or failure as the engine allows.
type Engine interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// Instructions builds the agent preamble for a goal. An empty goal falls back
// to a generic steps-following instruction.
func Instructions(goal string) string {
	trimmed := strings.TrimSpace(goal)
	if trimmed == "" {
		trimmed = "Execute steps provided by user"
	}
	return fmt.Sprintf(
		"You are an AI Agent that executes user defined steps in a given order using tools provided alongside.\n"+
			"Your goal is: %s.\nCurrent date is: %s. Respond in user language.",
		trimmed, time.Now().Format("2006-01-02"))
}

// FormatSteps renders ordered steps as a numbered run input.
func FormatSteps(steps []Step) string {
	var b strings.Builder
	b.WriteString("Execute these steps: \n")
	for _, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", step.Index+1, step.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
