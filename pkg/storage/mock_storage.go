package storage

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/blueragesoftware/backend/pkg/models"
)

// mockStore implements Store with in-memory storage. Entities are copied
// through JSON on the way in and out, matching how the Postgres store
// serializes snapshots, so callers can never mutate stored state through a
// returned value.
type mockStore struct {
	mu        sync.RWMutex
	agents    map[string]models.Agent
	platform  map[string]models.PlatformModel
	custom    map[string]models.CustomModel
	tasks     map[string]models.ExecutionTask
	taskOrder []string
}

// NewMockStore returns an empty in-memory Store for tests.
func NewMockStore() Store {
	return &mockStore{
		agents:   make(map[string]models.Agent),
		platform: make(map[string]models.PlatformModel),
		custom:   make(map[string]models.CustomModel),
		tasks:    make(map[string]models.ExecutionTask),
	}
}

func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) SaveAgent(a models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[a.ID] = deepCopy(a)
	return nil
}

func (m *mockStore) GetAgent(id, userID string) (models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.agents[id]
	if !ok || agent.UserID != userID {
		return models.Agent{}, ErrNotFound
	}
	return deepCopy(agent), nil
}

func (m *mockStore) SavePlatformModel(pm models.PlatformModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.platform[pm.ID] = pm
	return nil
}

func (m *mockStore) GetPlatformModel(id string) (models.PlatformModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pm, ok := m.platform[id]
	if !ok {
		return models.PlatformModel{}, ErrNotFound
	}
	return pm, nil
}

func (m *mockStore) SaveCustomModel(cm models.CustomModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.custom[cm.ID] = cm
	return nil
}

func (m *mockStore) GetCustomModel(id, userID string) (models.CustomModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cm, ok := m.custom[id]
	if !ok || cm.UserID != userID {
		return models.CustomModel{}, ErrNotFound
	}
	return cm, nil
}

func (m *mockStore) SaveExecutionTask(t models.ExecutionTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[t.ID]; !exists {
		m.taskOrder = append(m.taskOrder, t.ID)
	}
	m.tasks[t.ID] = deepCopy(t)
	return nil
}

func (m *mockStore) GetExecutionTask(id, userID string) (models.ExecutionTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok || task.UserID != userID {
		return models.ExecutionTask{}, ErrNotFound
	}
	return deepCopy(task), nil
}

func (m *mockStore) ListExecutionTasksByAgent(agentID, userID string) ([]models.ExecutionTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := []models.ExecutionTask{}
	for _, id := range m.taskOrder {
		task := m.tasks[id]
		if task.AgentID == agentID && task.UserID == userID {
			tasks = append(tasks, deepCopy(task))
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (m *mockStore) UpdateExecutionTaskState(id string, state models.TaskState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if task.State.Terminal() {
		return nil
	}
	task.State = state
	task.UpdatedAt = time.Now()
	m.tasks[id] = task
	return nil
}

func deepCopy[T any](v T) T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}
