// Package vault provides the secret storage contract used by provisioners
// and data pipelines, with an in-memory implementation and one backed by AWS
// Secrets Manager.
package vault

import (
	"context"
	"errors"
	"sync"
)

// ErrSecretNotFound is returned when no secret exists under the requested
// key.
var ErrSecretNotFound = errors.New("secret not found")

// Vault stores and resolves secrets such as short-lived transfer tokens.
// Implementations must be safe for concurrent use.
type Vault interface {
	// ResolveSecret returns the secret stored under key, or
	// ErrSecretNotFound.
	ResolveSecret(ctx context.Context, key string) (string, error)

	// StoreSecret writes the secret under key, replacing any previous
	// value.
	StoreSecret(ctx context.Context, key, value string) error

	// DeleteSecret removes the secret under key. Deleting an absent secret
	// is a success.
	DeleteSecret(ctx context.Context, key string) error
}

// InMemory is a Vault holding secrets in process memory. It is created
// explicitly at startup; there is no ambient or static instance.
type InMemory struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewInMemory creates an empty in-memory vault.
func NewInMemory() *InMemory {
	return &InMemory{secrets: map[string]string{}}
}

// ResolveSecret implements Vault.
func (v *InMemory) ResolveSecret(_ context.Context, key string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	secret, ok := v.secrets[key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return secret, nil
}

// StoreSecret implements Vault.
func (v *InMemory) StoreSecret(_ context.Context, key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[key] = value
	return nil
}

// DeleteSecret implements Vault.
func (v *InMemory) DeleteSecret(_ context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.secrets, key)
	return nil
}
