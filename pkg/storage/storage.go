package storage

import (
	"github.com/pkg/errors"

	"github.com/blueragesoftware/backend/pkg/models"
)

// ErrNotFound is returned when an entity does not exist or is not owned by
// the given user. Ownership misses are deliberately indistinguishable from
// missing rows so foreign ids leak nothing.
var ErrNotFound = errors.New("not found")

// Store defines the durable storage operations of the backend. All reads and
// mutations of user-owned entities are scoped by owner.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Agent operations
	SaveAgent(a models.Agent) error
	GetAgent(id, userID string) (models.Agent, error)

	// Model operations
	SavePlatformModel(m models.PlatformModel) error
	GetPlatformModel(id string) (models.PlatformModel, error)
	SaveCustomModel(m models.CustomModel) error
	GetCustomModel(id, userID string) (models.CustomModel, error)

	// Execution task operations
	SaveExecutionTask(t models.ExecutionTask) error
	GetExecutionTask(id, userID string) (models.ExecutionTask, error)
	ListExecutionTasksByAgent(agentID, userID string) ([]models.ExecutionTask, error)
	// UpdateExecutionTaskState applies the transition and refreshes the
	// task's updatedAt, but only while the stored state is non-terminal;
	// terminal states are never overwritten.
	UpdateExecutionTaskState(id string, state models.TaskState) error
}
