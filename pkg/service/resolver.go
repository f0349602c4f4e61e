package service

import (
	"github.com/pkg/errors"

	"github.com/blueragesoftware/backend/pkg/models"
	"github.com/blueragesoftware/backend/pkg/vault"
)

var (
	ErrInvalidModelType = errors.New("invalid model type")
	ErrInvalidProvider  = errors.New("invalid model provider")
)

// ModelResolver turns a task's model snapshot into the concrete tuple the
// execution engine consumes. Decryption happens here, at resolution time,
// just before use; the plaintext key lives only in the returned value.
type ModelResolver struct {
	vault *vault.Vault
}

func NewModelResolver(v *vault.Vault) *ModelResolver {
	return &ModelResolver{vault: v}
}

func (r *ModelResolver) Resolve(ref models.ModelRef) (models.ResolvedModel, error) {
	if !ref.Provider.Supported() {
		return models.ResolvedModel{}, ErrInvalidProvider
	}

	switch ref.Type {
	case models.PlatformModelType:
		// Platform models carry no per-user credential; the engine falls
		// back to its ambient default for the provider.
		return models.ResolvedModel{
			Provider: ref.Provider,
			ModelID:  ref.ModelID,
		}, nil
	case models.CustomModelType:
		apiKey, err := r.vault.Decrypt(ref.EncryptedAPIKey)
		if err != nil {
			return models.ResolvedModel{}, err
		}
		return models.ResolvedModel{
			Provider: ref.Provider,
			ModelID:  ref.ModelID,
			APIKey:   apiKey,
			BaseURL:  ref.BaseURL,
		}, nil
	default:
		return models.ResolvedModel{}, ErrInvalidModelType
	}
}
