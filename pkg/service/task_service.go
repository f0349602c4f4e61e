package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/blueragesoftware/backend/pkg/models"
	"github.com/blueragesoftware/backend/pkg/storage"
)

// Logger defines the logging interface the services depend on.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// TaskQueue decouples "task created" from "task executed". Enqueue is
// fire-and-forget and guarantees an eventual attempt, not immediate
// execution.
type TaskQueue interface {
	Enqueue(task models.ExecutionTask)
}

// TaskService owns the execution task lifecycle: creation with frozen
// agent/model snapshots, owner-scoped reads, and guarded state transitions.
type TaskService struct {
	store          storage.Store
	queue          TaskQueue
	defaultModelID string
	logger         Logger
}

func NewTaskService(store storage.Store, queue TaskQueue, defaultModelID string, logger Logger) *TaskService {
	return &TaskService{
		store:          store,
		queue:          queue,
		defaultModelID: defaultModelID,
		logger:         logger,
	}
}

// CreateTask snapshots the agent and its model into a new registered task and
// hands it to the dispatcher. The snapshot is a value copy: later edits to
// the live agent never reach this task.
func (s *TaskService) CreateTask(ctx context.Context, userID, agentID string) (models.ExecutionTask, error) {
	agent, err := s.store.GetAgent(agentID, userID)
	if err != nil {
		return models.ExecutionTask{}, errors.Wrapf(err, "agent %s", agentID)
	}

	modelRef, err := s.agentModelRef(agent)
	if err != nil {
		return models.ExecutionTask{}, err
	}

	now := time.Now()
	task := models.ExecutionTask{
		ID:        "task-" + uuid.New().String(),
		AgentID:   agent.ID,
		UserID:    agent.UserID,
		Agent:     agent,
		Model:     modelRef,
		State:     models.Registered(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.persistTask(task); err != nil {
		return models.ExecutionTask{}, err
	}

	// Enqueue only after the commit: a worker must never see a task whose
	// row is not yet visible to its state transitions.
	s.queue.Enqueue(task)
	s.logger.Infof("Created execution task %s for agent %s", task.ID, agent.ID)
	return task, nil
}

func (s *TaskService) persistTask(task models.ExecutionTask) (err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	if err = txStore.SaveExecutionTask(task); err != nil {
		return errors.Wrapf(err, "save task %s", task.ID)
	}
	return nil
}

// GetTask returns a task scoped to its owner.
func (s *TaskService) GetTask(ctx context.Context, userID, id string) (models.ExecutionTask, error) {
	return s.store.GetExecutionTask(id, userID)
}

// ListTasksByAgent returns the agent's tasks, newest first.
func (s *TaskService) ListTasksByAgent(ctx context.Context, userID, agentID string) ([]models.ExecutionTask, error) {
	if _, err := s.store.GetAgent(agentID, userID); err != nil {
		return nil, errors.Wrapf(err, "agent %s", agentID)
	}
	return s.store.ListExecutionTasksByAgent(agentID, userID)
}

// MarkTaskRunning applies Registered -> Running. Redelivered work may re-apply
// it; the store ignores the write once a terminal state landed.
func (s *TaskService) MarkTaskRunning(ctx context.Context, id string) error {
	return s.store.UpdateExecutionTaskState(id, models.Running())
}

// CompleteTask records the terminal success state.
func (s *TaskService) CompleteTask(ctx context.Context, id, result string) error {
	return s.store.UpdateExecutionTaskState(id, models.Success(result))
}

// FailTask records the terminal error state with a human-readable message.
func (s *TaskService) FailTask(ctx context.Context, id, errMsg string) error {
	return s.store.UpdateExecutionTaskState(id, models.Failed(errMsg))
}

// agentModelRef resolves the agent's model reference to a snapshot value.
// Agents without a model fall back to the platform default.
func (s *TaskService) agentModelRef(agent models.Agent) (models.ModelRef, error) {
	modelID := agent.ModelID
	modelType := agent.ModelType
	if modelID == "" {
		modelID = s.defaultModelID
		modelType = models.PlatformModelType
	}

	switch modelType {
	case models.PlatformModelType:
		pm, err := s.store.GetPlatformModel(modelID)
		if err != nil {
			return models.ModelRef{}, errors.Wrapf(err, "model %s", modelID)
		}
		return pm.Ref(), nil
	case models.CustomModelType:
		cm, err := s.store.GetCustomModel(modelID, agent.UserID)
		if err != nil {
			return models.ModelRef{}, errors.Wrapf(err, "custom model %s", modelID)
		}
		return cm.Ref(), nil
	default:
		return models.ModelRef{}, fmt.Errorf("agent %s has unknown model type %q", agent.ID, agent.ModelType)
	}
}
