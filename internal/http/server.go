// Package http exposes the task API surface consumed by the front-end:
// create-task, get-task, and list-tasks-by-agent.
package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/blueragesoftware/backend/internal/log"
	"github.com/blueragesoftware/backend/pkg/service"
	"github.com/blueragesoftware/backend/pkg/storage"
)

// userHeader carries the authenticated user id. Identity federation happens
// upstream of this service; the gateway injects the header.
const userHeader = "X-User-Id"

func NewRouter(tasks *service.TaskService) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/tasks", TasksHandler(tasks))
	mux.HandleFunc("/tasks/", TaskByIDHandler(tasks))
	mux.HandleFunc("/agents/", AgentTasksHandler(tasks))
	return mux
}

func StartServer(port string, tasks *service.TaskService) error {
	log.GetLogger().Infof("Starting server on :%s", port)
	return http.ListenAndServe(":"+port, NewRouter(tasks))
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TasksHandler creates an execution task and enqueues its run. The response
// is the registered task; callers poll the task record for the outcome rather
// than waiting on this request.
func TasksHandler(tasks *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		userID := r.Header.Get(userHeader)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		var body struct {
			AgentID string `json:"agent_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AgentID == "" {
			writeError(w, http.StatusBadRequest, "missing 'agent_id'")
			return
		}
		task, err := tasks.CreateTask(r.Context(), userID, body.AgentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "agent not found")
				return
			}
			log.GetLogger().Errorf("Failed to create task: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to create task")
			return
		}
		writeJSON(w, http.StatusCreated, task)
	}
}

func TaskByIDHandler(tasks *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		userID := r.Header.Get(userHeader)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/tasks/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, http.StatusBadRequest, "invalid task id")
			return
		}
		task, err := tasks.GetTask(r.Context(), userID, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "task not found")
				return
			}
			log.GetLogger().Errorf("Failed to get task %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to get task")
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

// AgentTasksHandler serves GET /agents/{id}/tasks, newest first.
func AgentTasksHandler(tasks *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		userID := r.Header.Get(userHeader)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/agents/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] != "tasks" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		list, err := tasks.ListTasksByAgent(r.Context(), userID, parts[0])
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "agent not found")
				return
			}
			log.GetLogger().Errorf("Failed to list tasks for agent %s: %v", parts[0], err)
			writeError(w, http.StatusInternalServerError, "failed to list tasks")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
