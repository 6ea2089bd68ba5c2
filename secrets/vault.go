package secrets

import (
	"context"
	"errors"
	"fmt"

	vault "github.com/hashicorp/vault/api"
)

// VaultStore is the production backend: HashiCorp Vault KV v2 under a single
// mount. The merge rule is honored with a server-side patch, falling back to
// read-merge-write for paths that do not exist yet.
type VaultStore struct {
	kv *vault.KVv2
}

// NewVaultStore creates a [VaultStore] over an authenticated Vault client
// and the KV v2 mount to use (for example "secret").
func NewVaultStore(client *vault.Client, mount string) *VaultStore {
	return &VaultStore{kv: client.KVv2(mount)}
}

// Store implements [Store].
func (s *VaultStore) Store(ctx context.Context, path, key, value string) error {
	return s.StoreBatch(ctx, path, map[string]string{key: value})
}

// StoreBatch implements [Store].
func (s *VaultStore) StoreBatch(ctx context.Context, path string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	data := make(map[string]interface{}, len(values))
	for k, v := range values {
		data[k] = v
	}

	if _, err := s.kv.Patch(ctx, path, data); err != nil {
		// Patch requires the path to exist; first write falls back to Put.
		if errors.Is(err, vault.ErrSecretNotFound) {
			if _, putErr := s.kv.Put(ctx, path, data); putErr != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, putErr)
			}
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get implements [Store].
func (s *VaultStore) Get(ctx context.Context, path, key string) (string, bool, error) {
	values, err := s.GetAll(ctx, path)
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

// GetAll implements [Store].
func (s *VaultStore) GetAll(ctx context.Context, path string) (map[string]string, error) {
	secret, err := s.kv.Get(ctx, path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		if str, ok := v.(string); ok {
			out[k] = str
		}
	}
	return out, nil
}

// Delete implements [Store]. Destroys all versions so token material does
// not linger in Vault's version history after revocation.
func (s *VaultStore) Delete(ctx context.Context, path string) error {
	if err := s.kv.DeleteMetadata(ctx, path); err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Exists implements [Store].
func (s *VaultStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.kv.Get(ctx, path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return true, nil
}
