package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"google.golang.org/api/option"
	secretmanager "google.golang.org/api/secretmanager/v1"
)

// Store provides named secrets (database credentials and the like).
type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

// SecretManagerStore reads the latest version of each secret from Google
// Secret Manager.
type SecretManagerStore struct {
	service *secretmanager.Service
	project string
}

// NewSecretManagerStore creates a Secret Manager backed store for the
// given project, authenticating with ambient credentials.
func NewSecretManagerStore(ctx context.Context, project string, opts ...option.ClientOption) (*SecretManagerStore, error) {
	service, err := secretmanager.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager service: %w", err)
	}
	return &SecretManagerStore{service: service, project: project}, nil
}

// Get returns the latest version of the named secret.
func (s *SecretManagerStore) Get(ctx context.Context, key string) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.project, key)
	resp, err := s.service.Projects.Secrets.Versions.Access(name).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", key, err)
	}
	if resp.Payload == nil {
		return "", fmt.Errorf("secret %s has no payload", key)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
	if err != nil {
		return "", fmt.Errorf("failed to decode secret %s: %w", key, err)
	}
	return string(data), nil
}

// EnvStore resolves secrets from environment variables, for local runs and
// tests.
type EnvStore struct{}

// NewEnvStore creates an environment-backed secret store
func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

// Get returns the value of the environment variable named key.
func (s *EnvStore) Get(_ context.Context, key string) (string, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("secret %s is not set", key)
	}
	return value, nil
}
