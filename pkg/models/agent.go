package models

type FileKind string

const (
	ImageFileKind FileKind = "image"
	DocFileKind   FileKind = "file"
)

// Step is one ordered instruction of an agent.
type Step struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// AgentFile is an attachment the agent receives as execution input.
type AgentFile struct {
	URL  string   `json:"url"`
	Name string   `json:"name,omitempty"`
	Kind FileKind `json:"kind"`
}

// Agent is a user-defined configuration of goal, ordered steps, requested
// tools, model choice and attachments.
type Agent struct {
	ID          string      `json:"id" db:"id"`
	UserID      string      `json:"user_id" db:"user_id"`
	Name        string      `json:"name" db:"name"`
	Description string      `json:"description" db:"description"`
	IconURL     string      `json:"icon_url" db:"icon_url"`
	Goal        string      `json:"goal" db:"goal"`
	Steps       []Step      `json:"steps"`
	Tools       []string    `json:"tools"` // toolkit slugs, e.g. "GITHUB"
	Files       []AgentFile `json:"files"`
	ModelType   ModelType   `json:"model_type" db:"model_type"`
	ModelID     string      `json:"model_id" db:"model_id"`
}
