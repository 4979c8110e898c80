package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// SecretsManagerAPI is the subset of the AWS Secrets Manager client the
// vault uses. The interface exists so tests can substitute a mock.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)

	CreateSecret(
		ctx context.Context,
		params *secretsmanager.CreateSecretInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.CreateSecretOutput, error)

	PutSecretValue(
		ctx context.Context,
		params *secretsmanager.PutSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.PutSecretValueOutput, error)

	DeleteSecret(
		ctx context.Context,
		params *secretsmanager.DeleteSecretInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.DeleteSecretOutput, error)
}

// SecretsManager is a Vault backed by AWS Secrets Manager. Secret keys map
// to secret names unchanged.
type SecretsManager struct {
	client SecretsManagerAPI
}

// NewSecretsManager creates a vault over the given Secrets Manager client.
func NewSecretsManager(client SecretsManagerAPI) *SecretsManager {
	return &SecretsManager{client: client}
}

// ResolveSecret implements Vault.
func (v *SecretsManager) ResolveSecret(ctx context.Context, key string) (string, error) {
	out, err := v.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("vault: resolving secret %s: %w", key, err)
	}
	if out.SecretString == nil {
		return "", ErrSecretNotFound
	}
	return *out.SecretString, nil
}

// StoreSecret implements Vault. The secret is created on first write and
// versioned on subsequent writes.
func (v *SecretsManager) StoreSecret(ctx context.Context, key, value string) error {
	_, err := v.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(key),
		SecretString: aws.String(value),
	})
	if err == nil {
		return nil
	}

	var exists *smtypes.ResourceExistsException
	if !errors.As(err, &exists) {
		return fmt.Errorf("vault: storing secret %s: %w", key, err)
	}

	_, err = v.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(key),
		SecretString: aws.String(value),
	})
	if err != nil {
		return fmt.Errorf("vault: updating secret %s: %w", key, err)
	}
	return nil
}

// DeleteSecret implements Vault. Deleting an absent secret succeeds.
func (v *SecretsManager) DeleteSecret(ctx context.Context, key string) error {
	_, err := v.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(key),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("vault: deleting secret %s: %w", key, err)
	}
	return nil
}
