package models

// LLMConfig is the server-side generator model configuration. Read and
// updated as-is; the client applies no interpretation.
type LLMConfig struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	BaseURL   string `json:"base_url,omitempty"`
	APIKeySet bool   `json:"api_key_set,omitempty"`
}

// Template is a server-hosted starter schema.
type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      *SchemaDocument `json:"schema,omitempty"`
}
