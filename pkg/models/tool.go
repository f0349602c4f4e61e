package models

// Toolkit is integration-platform metadata for a supported tool.
type Toolkit struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
}

// AuthorizedTool is a requested tool the owning user has connected with the
// integration platform, together with the handles the execution engine needs
// to invoke it. Computed against live authorization state at execution time.
type AuthorizedTool struct {
	Toolkit
	AuthConfigID string `json:"auth_config_id"`
	ConnectionID string `json:"connection_id"`
	Status       string `json:"status"`
}
