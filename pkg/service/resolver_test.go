package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueragesoftware/backend/pkg/models"
	"github.com/blueragesoftware/backend/pkg/service"
	"github.com/blueragesoftware/backend/pkg/vault"
)

func newTestVault(t *testing.T) *vault.Vault {
	v, err := vault.New("resolver-test-secret")
	require.NoError(t, err)
	return v
}

func TestModelResolver_PlatformModel(t *testing.T) {
	resolver := service.NewModelResolver(newTestVault(t))

	resolved, err := resolver.Resolve(models.ModelRef{
		Type:     models.PlatformModelType,
		Provider: models.AnthropicProvider,
		ModelID:  "claude-sonnet-4",
	})
	assert.NoError(t, err)
	assert.Equal(t, models.AnthropicProvider, resolved.Provider)
	assert.Equal(t, "claude-sonnet-4", resolved.ModelID)
	// Platform models never carry a per-user credential.
	assert.Empty(t, resolved.APIKey)
	assert.Empty(t, resolved.BaseURL)
}

func TestModelResolver_CustomModel(t *testing.T) {
	v := newTestVault(t)
	resolver := service.NewModelResolver(v)

	encrypted, err := v.Encrypt("sk-user-key")
	require.NoError(t, err)

	resolved, err := resolver.Resolve(models.ModelRef{
		Type:            models.CustomModelType,
		Provider:        models.OpenAIProvider,
		ModelID:         "gpt-4o",
		EncryptedAPIKey: encrypted,
		BaseURL:         "https://llm.internal.example.com/v1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "sk-user-key", resolved.APIKey)
	assert.Equal(t, "https://llm.internal.example.com/v1", resolved.BaseURL)
}

func TestModelResolver_CustomModelWithoutKey(t *testing.T) {
	resolver := service.NewModelResolver(newTestVault(t))

	// Absent credential means "use the engine's ambient default".
	resolved, err := resolver.Resolve(models.ModelRef{
		Type:     models.CustomModelType,
		Provider: models.OpenRouterProvider,
		ModelID:  "meta-llama/llama-3-70b",
	})
	assert.NoError(t, err)
	assert.Empty(t, resolved.APIKey)
}

func TestModelResolver_CorruptedCredential(t *testing.T) {
	resolver := service.NewModelResolver(newTestVault(t))

	_, err := resolver.Resolve(models.ModelRef{
		Type:            models.CustomModelType,
		Provider:        models.OpenAIProvider,
		ModelID:         "gpt-4o",
		EncryptedAPIKey: "corrupted-not-a-ciphertext",
	})
	assert.ErrorIs(t, err, vault.ErrDecryptionFailed)
}

func TestModelResolver_InvalidProvider(t *testing.T) {
	resolver := service.NewModelResolver(newTestVault(t))

	_, err := resolver.Resolve(models.ModelRef{
		Type:     models.PlatformModelType,
		Provider: "cohere",
		ModelID:  "command-r",
	})
	assert.ErrorIs(t, err, service.ErrInvalidProvider)
}

func TestModelResolver_InvalidModelType(t *testing.T) {
	resolver := service.NewModelResolver(newTestVault(t))

	_, err := resolver.Resolve(models.ModelRef{
		Type:     "somethingElse",
		Provider: models.OpenAIProvider,
		ModelID:  "gpt-4o",
	})
	assert.ErrorIs(t, err, service.ErrInvalidModelType)
}
