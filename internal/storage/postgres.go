package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/blueragesoftware/backend/pkg/models"
	"github.com/blueragesoftware/backend/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// agentRow flattens Agent for scanning; steps/tools/files ride in JSONB.
type agentRow struct {
	ID          string `db:"id"`
	UserID      string `db:"user_id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	IconURL     string `db:"icon_url"`
	Goal        string `db:"goal"`
	Steps       []byte `db:"steps"`
	Tools       []byte `db:"tools"`
	Files       []byte `db:"files"`
	ModelType   string `db:"model_type"`
	ModelID     string `db:"model_id"`
}

func (r agentRow) toAgent() (models.Agent, error) {
	agent := models.Agent{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description,
		IconURL:     r.IconURL,
		Goal:        r.Goal,
		ModelType:   models.ModelType(r.ModelType),
		ModelID:     r.ModelID,
	}
	if err := json.Unmarshal(r.Steps, &agent.Steps); err != nil {
		return models.Agent{}, fmt.Errorf("decode agent %s steps: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Tools, &agent.Tools); err != nil {
		return models.Agent{}, fmt.Errorf("decode agent %s tools: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Files, &agent.Files); err != nil {
		return models.Agent{}, fmt.Errorf("decode agent %s files: %w", r.ID, err)
	}
	return agent, nil
}

// SaveAgent creates or replaces an agent definition.
func (s *PostgresStore) SaveAgent(a models.Agent) error {
	steps, err := json.Marshal(a.Steps)
	if err != nil {
		return fmt.Errorf("encode agent steps: %w", err)
	}
	tools, err := json.Marshal(a.Tools)
	if err != nil {
		return fmt.Errorf("encode agent tools: %w", err)
	}
	files, err := json.Marshal(a.Files)
	if err != nil {
		return fmt.Errorf("encode agent files: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO agents (id, user_id, name, description, icon_url, goal, steps, tools, files, model_type, model_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			icon_url = EXCLUDED.icon_url,
			goal = EXCLUDED.goal,
			steps = EXCLUDED.steps,
			tools = EXCLUDED.tools,
			files = EXCLUDED.files,
			model_type = EXCLUDED.model_type,
			model_id = EXCLUDED.model_id`,
		a.ID, a.UserID, a.Name, a.Description, a.IconURL, a.Goal, steps, tools, files, a.ModelType, a.ModelID)
	return err
}

// GetAgent retrieves an agent scoped to its owner.
func (s *PostgresStore) GetAgent(id, userID string) (models.Agent, error) {
	var row agentRow
	err := s.db.Get(&row, "SELECT * FROM agents WHERE id = $1 AND user_id = $2", id, userID)
	if err == sql.ErrNoRows {
		return models.Agent{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Agent{}, err
	}
	return row.toAgent()
}

func (s *PostgresStore) SavePlatformModel(m models.PlatformModel) error {
	_, err := s.db.Exec(`
		INSERT INTO platform_models (id, name, provider, model_id) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, provider = EXCLUDED.provider, model_id = EXCLUDED.model_id`,
		m.ID, m.Name, m.Provider, m.ModelID)
	return err
}

func (s *PostgresStore) GetPlatformModel(id string) (models.PlatformModel, error) {
	var pm models.PlatformModel
	err := s.db.Get(&pm, "SELECT * FROM platform_models WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.PlatformModel{}, storage.ErrNotFound
	}
	if err != nil {
		return models.PlatformModel{}, err
	}
	return pm, nil
}

func (s *PostgresStore) SaveCustomModel(m models.CustomModel) error {
	_, err := s.db.Exec(`
		INSERT INTO custom_models (id, user_id, name, provider, model_id, encrypted_api_key, base_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			provider = EXCLUDED.provider,
			model_id = EXCLUDED.model_id,
			encrypted_api_key = EXCLUDED.encrypted_api_key,
			base_url = EXCLUDED.base_url`,
		m.ID, m.UserID, m.Name, m.Provider, m.ModelID, m.EncryptedAPIKey, m.BaseURL)
	return err
}

func (s *PostgresStore) GetCustomModel(id, userID string) (models.CustomModel, error) {
	var cm models.CustomModel
	err := s.db.Get(&cm, "SELECT * FROM custom_models WHERE id = $1 AND user_id = $2", id, userID)
	if err == sql.ErrNoRows {
		return models.CustomModel{}, storage.ErrNotFound
	}
	if err != nil {
		return models.CustomModel{}, err
	}
	return cm, nil
}

// taskRow flattens ExecutionTask; the agent and model snapshots are stored as
// JSONB value copies, never as references to the live rows.
type taskRow struct {
	ID            string    `db:"id"`
	AgentID       string    `db:"agent_id"`
	UserID        string    `db:"user_id"`
	AgentSnapshot []byte    `db:"agent_snapshot"`
	ModelSnapshot []byte    `db:"model_snapshot"`
	State         string    `db:"state"`
	Result        string    `db:"result"`
	ErrorMsg      string    `db:"error_msg"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r taskRow) toTask() (models.ExecutionTask, error) {
	task := models.ExecutionTask{
		ID:      r.ID,
		AgentID: r.AgentID,
		UserID:  r.UserID,
		State: models.TaskState{
			Type:   models.TaskStateType(r.State),
			Result: r.Result,
			Error:  r.ErrorMsg,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal(r.AgentSnapshot, &task.Agent); err != nil {
		return models.ExecutionTask{}, fmt.Errorf("decode task %s agent snapshot: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.ModelSnapshot, &task.Model); err != nil {
		return models.ExecutionTask{}, fmt.Errorf("decode task %s model snapshot: %w", r.ID, err)
	}
	return task, nil
}

// SaveExecutionTask inserts a new execution task record.
func (s *PostgresStore) SaveExecutionTask(t models.ExecutionTask) error {
	agentSnapshot, err := json.Marshal(t.Agent)
	if err != nil {
		return fmt.Errorf("encode agent snapshot: %w", err)
	}
	modelSnapshot, err := json.Marshal(t.Model)
	if err != nil {
		return fmt.Errorf("encode model snapshot: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO execution_tasks (id, agent_id, user_id, agent_snapshot, model_snapshot, state, result, error_msg, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.AgentID, t.UserID, agentSnapshot, modelSnapshot, t.State.Type, t.State.Result, t.State.Error, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetExecutionTask retrieves a task scoped to its owner.
func (s *PostgresStore) GetExecutionTask(id, userID string) (models.ExecutionTask, error) {
	var row taskRow
	err := s.db.Get(&row, "SELECT * FROM execution_tasks WHERE id = $1 AND user_id = $2", id, userID)
	if err == sql.ErrNoRows {
		return models.ExecutionTask{}, storage.ErrNotFound
	}
	if err != nil {
		return models.ExecutionTask{}, err
	}
	return row.toTask()
}

// ListExecutionTasksByAgent returns the agent's tasks, newest first.
func (s *PostgresStore) ListExecutionTasksByAgent(agentID, userID string) ([]models.ExecutionTask, error) {
	var rows []taskRow
	err := s.db.Select(&rows,
		"SELECT * FROM execution_tasks WHERE agent_id = $1 AND user_id = $2 ORDER BY created_at DESC",
		agentID, userID)
	if err != nil {
		return nil, err
	}
	tasks := make([]models.ExecutionTask, 0, len(rows))
	for _, row := range rows {
		task, err := row.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// UpdateExecutionTaskState applies a state transition. The predicate keeps
// terminal states immutable under redelivered work. An update that matches no
// row is only acceptable when the guard held; a missing row is an error.
func (s *PostgresStore) UpdateExecutionTaskState(id string, state models.TaskState) error {
	res, err := s.db.Exec(`
		UPDATE execution_tasks
		SET state = $1, result = $2, error_msg = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4 AND state NOT IN ('success', 'error')`,
		state.Type, state.Result, state.Error, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current string
		err := s.db.Get(&current, "SELECT state FROM execution_tasks WHERE id = $1", id)
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		// Terminal row: the guard rejected the write, nothing to report.
	}
	return nil
}
