package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalhttp "github.com/blueragesoftware/backend/internal/http"
	"github.com/blueragesoftware/backend/pkg/models"
	"github.com/blueragesoftware/backend/pkg/service"
	"github.com/blueragesoftware/backend/pkg/storage"
)

type noopLogger struct{}

func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []models.ExecutionTask
}

func (q *recordingQueue) Enqueue(task models.ExecutionTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type fixture struct {
	server *httptest.Server
	store  storage.Store
	tasks  *service.TaskService
	queue  *recordingQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMockStore()
	queue := &recordingQueue{}

	require.NoError(t, store.SavePlatformModel(models.PlatformModel{
		ID:       "model-default",
		Provider: models.AnthropicProvider,
		ModelID:  "claude-sonnet-4",
	}))
	require.NoError(t, store.SaveAgent(models.Agent{
		ID:        "agent-1",
		UserID:    "user-1",
		Name:      "Summarizer",
		Goal:      "summarize text",
		ModelType: models.PlatformModelType,
		ModelID:   "model-default",
	}))

	tasks := service.NewTaskService(store, queue, "model-default", noopLogger{})
	server := httptest.NewServer(internalhttp.NewRouter(tasks))
	t.Cleanup(server.Close)
	return &fixture{server: server, store: store, tasks: tasks, queue: queue}
}

func (f *fixture) do(t *testing.T, method, path, userID string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeTask(t *testing.T, resp *http.Response) models.ExecutionTask {
	t.Helper()
	defer resp.Body.Close()
	var task models.ExecutionTask
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	return task
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateTask(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/tasks", "user-1", map[string]string{"agent_id": "agent-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	task := decodeTask(t, resp)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "agent-1", task.AgentID)
	assert.Equal(t, models.RegisteredTaskState, task.State.Type)
	assert.Equal(t, "summarize text", task.Agent.Goal)
	assert.Equal(t, "claude-sonnet-4", task.Model.ModelID)

	// The run was handed to the dispatcher, not executed inline.
	assert.Equal(t, 1, f.queue.count())
}

func TestCreateTask_MissingUserHeader(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/tasks", "", map[string]string{"agent_id": "agent-1"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, f.queue.count())
}

func TestCreateTask_MissingAgentID(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/tasks", "user-1", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateTask_UnknownAgent(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/tasks", "user-1", map[string]string{"agent_id": "agent-nope"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, f.queue.count())
}

func TestCreateTask_WrongMethod(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/tasks", "user-1", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGetTask(t *testing.T) {
	f := newFixture(t)
	created, err := f.tasks.CreateTask(context.Background(), "user-1", "agent-1")
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/tasks/"+created.ID, "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	task := decodeTask(t, resp)
	assert.Equal(t, created.ID, task.ID)
	assert.Equal(t, models.RegisteredTaskState, task.State.Type)
}

func TestGetTask_CrossUserMaskedAsNotFound(t *testing.T) {
	f := newFixture(t)
	created, err := f.tasks.CreateTask(context.Background(), "user-1", "agent-1")
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/tasks/"+created.ID, "user-2", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetTask_Unknown(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/tasks/task-nope", "user-1", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListAgentTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.tasks.CreateTask(ctx, "user-1", "agent-1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := f.tasks.CreateTask(ctx, "user-1", "agent-1")
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/agents/agent-1/tasks", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var list []models.ExecutionTask
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestListAgentTasks_UnknownAgent(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/agents/agent-nope/tasks", "user-1", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListAgentTasks_BadPath(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/agents/agent-1/steps", "user-1", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
