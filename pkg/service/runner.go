package service

import (
	"context"
	"fmt"

	"github.com/blueragesoftware/backend/pkg/engine"
	"github.com/blueragesoftware/backend/pkg/models"
)

// ToolAuthorizer resolves requested tool slugs against live authorization
// state.
type ToolAuthorizer interface {
	AuthorizeTools(ctx context.Context, userID string, slugs []string) ([]models.AuthorizedTool, error)
}

// Runner is the orchestration handler the dispatcher invokes for each
// execution task. Every failure inside Run is converted into a terminal error
// state on the task record, so the record is the single source of truth for
// the outcome and a broken run can never crash its worker.
//
// The dispatcher delivers at-least-once: Run may be re-entered for the same
// task after a crash. Tool and model resolution are idempotent and the store
// refuses to overwrite terminal states, but a redelivered task that already
// reached the engine will invoke the engine again. That is the documented
// contract, not an oversight.
type Runner struct {
	tasks      *TaskService
	authorizer ToolAuthorizer
	resolver   *ModelResolver
	engine     engine.Engine
	logger     Logger
}

func NewRunner(tasks *TaskService, authorizer ToolAuthorizer, resolver *ModelResolver, eng engine.Engine, logger Logger) *Runner {
	return &Runner{
		tasks:      tasks,
		authorizer: authorizer,
		resolver:   resolver,
		engine:     eng,
		logger:     logger,
	}
}

// Run executes one task: mark running, authorize tools, resolve the model,
// delegate to the execution engine, record the terminal state. It always
// returns nil; outcomes live on the task record.
func (r *Runner) Run(ctx context.Context, task models.ExecutionTask) error {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("Task %s panicked: %v", task.ID, rec)
			r.fail(ctx, task.ID, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	if err := r.tasks.MarkTaskRunning(ctx, task.ID); err != nil {
		// The transition is bookkeeping; execution proceeds on a failed
		// write and the terminal transition still lands.
		r.logger.Errorf("Failed to mark task %s running: %v", task.ID, err)
	}

	tools, err := r.authorizer.AuthorizeTools(ctx, task.UserID, task.Agent.Tools)
	if err != nil {
		r.logger.Errorf("Tool authorization failed for task %s: %v", task.ID, err)
		r.fail(ctx, task.ID, err.Error())
		return nil
	}

	resolved, err := r.resolver.Resolve(task.Model)
	if err != nil {
		r.logger.Errorf("Model resolution failed for task %s: %v", task.ID, err)
		r.fail(ctx, task.ID, err.Error())
		return nil
	}

	result, err := r.engine.Run(ctx, buildRunRequest(task, tools, resolved))
	if err != nil {
		r.logger.Errorf("Engine execution failed for task %s: %v", task.ID, err)
		r.fail(ctx, task.ID, err.Error())
		return nil
	}

	output := result.FinalOutput
	if output == "" {
		output = "No result"
	}
	if err := r.tasks.CompleteTask(ctx, task.ID, output); err != nil {
		r.logger.Errorf("Failed to record success for task %s: %v", task.ID, err)
		return nil
	}
	r.logger.Infof("Task %s completed", task.ID)
	return nil
}

func (r *Runner) fail(ctx context.Context, taskID, msg string) {
	if err := r.tasks.FailTask(ctx, taskID, msg); err != nil {
		r.logger.Errorf("Failed to record error for task %s: %v", taskID, err)
	}
}

func buildRunRequest(task models.ExecutionTask, tools []models.AuthorizedTool, resolved models.ResolvedModel) engine.RunRequest {
	steps := make([]engine.Step, len(task.Agent.Steps))
	for i, step := range task.Agent.Steps {
		steps[i] = engine.Step{Index: i, Text: step.Value}
	}

	var files []engine.InputFile
	for _, file := range task.Agent.Files {
		files = append(files, engine.InputFile{
			URL:  file.URL,
			Name: file.Name,
			Kind: file.Kind,
		})
	}

	return engine.RunRequest{
		Instructions: engine.Instructions(task.Agent.Goal),
		Steps:        steps,
		Tools:        tools,
		Model:        resolved,
		InputFiles:   files,
	}
}
