package models

type Provider string

const (
	OpenRouterProvider Provider = "openrouter"
	OpenAIProvider     Provider = "openai"
	AnthropicProvider  Provider = "anthropic"
	XAIProvider        Provider = "xai"
)

// Supported reports whether the provider belongs to the closed set the
// resolver knows how to hand to the execution engine.
func (p Provider) Supported() bool {
	switch p {
	case OpenRouterProvider, OpenAIProvider, AnthropicProvider, XAIProvider:
		return true
	}
	return false
}

type ModelType string

const (
	// PlatformModelType marks a model the platform provides; it carries no
	// per-user credential.
	PlatformModelType ModelType = "model"
	// CustomModelType marks a user-supplied model with a stored, encrypted
	// credential and an optional base URL override.
	CustomModelType ModelType = "customModel"
)

// ModelRef is the tagged model reference snapshotted into an execution task.
// EncryptedAPIKey and BaseURL are populated for custom models only; an empty
// EncryptedAPIKey means "use the engine's ambient default credential".
type ModelRef struct {
	Type            ModelType `json:"type" db:"type"`
	Provider        Provider  `json:"provider" db:"provider"`
	ModelID         string    `json:"model_id" db:"model_id"`
	Name            string    `json:"name" db:"name"`
	EncryptedAPIKey string    `json:"encrypted_api_key,omitempty" db:"encrypted_api_key"`
	BaseURL         string    `json:"base_url,omitempty" db:"base_url"`
}

// PlatformModel is a model the platform offers to every user.
type PlatformModel struct {
	ID       string   `json:"id" db:"id"`
	Name     string   `json:"name" db:"name"`
	Provider Provider `json:"provider" db:"provider"`
	ModelID  string   `json:"model_id" db:"model_id"`
}

func (m PlatformModel) Ref() ModelRef {
	return ModelRef{
		Type:     PlatformModelType,
		Provider: m.Provider,
		ModelID:  m.ModelID,
		Name:     m.Name,
	}
}

// CustomModel is a user-supplied model with an encrypted credential.
type CustomModel struct {
	ID              string   `json:"id" db:"id"`
	UserID          string   `json:"user_id" db:"user_id"`
	Name            string   `json:"name" db:"name"`
	Provider        Provider `json:"provider" db:"provider"`
	ModelID         string   `json:"model_id" db:"model_id"`
	EncryptedAPIKey string   `json:"encrypted_api_key" db:"encrypted_api_key"`
	BaseURL         string   `json:"base_url" db:"base_url"`
}

func (m CustomModel) Ref() ModelRef {
	return ModelRef{
		Type:            CustomModelType,
		Provider:        m.Provider,
		ModelID:         m.ModelID,
		Name:            m.Name,
		EncryptedAPIKey: m.EncryptedAPIKey,
		BaseURL:         m.BaseURL,
	}
}

// ResolvedModel is the concrete provider/model/credential tuple computed from
// a ModelRef at execution time. It is held in memory for the duration of one
// execution only; the decrypted key must never be persisted or logged.
type ResolvedModel struct {
	Provider Provider `json:"provider"`
	ModelID  string   `json:"model_id"`
	APIKey   string   `json:"api_key,omitempty"`
	BaseURL  string   `json:"base_url,omitempty"`
}
