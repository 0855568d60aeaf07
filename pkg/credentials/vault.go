// Package credentials implements the credential vault: auth-method-aware
// encryption and just-in-time decryption of per-integration secrets.
package credentials

import (
	"encoding/json"
	"fmt"

	"github.com/stackflow-io/stackflow/pkg/models"
	"github.com/stackflow-io/stackflow/pkg/observability"
	"github.com/stackflow-io/stackflow/pkg/security"
)

// Credentials is the decrypted credential material for one integration.
// Read-only after creation: a batch decrypts once and shares the value
// across concurrently executing operations.
type Credentials struct {
	AccessToken string
	Username    string
	Password    string
	OAuthTokens map[string]string
}

// SecretsMap flattens the credentials into the string map injected into the
// sandbox runtime. The connector's domain travels alongside the secrets so
// connector code can build request URLs.
func (c *Credentials) SecretsMap(domain string) map[string]string {
	secrets := make(map[string]string)
	if c.AccessToken != "" {
		secrets["accessToken"] = c.AccessToken
	}
	if c.Username != "" {
		secrets["username"] = c.Username
	}
	if c.Password != "" {
		secrets["password"] = c.Password
	}
	for k, v := range c.OAuthTokens {
		secrets[k] = v
	}
	if domain != "" {
		secrets["domain"] = domain
	}
	return secrets
}

// Vault encrypts and decrypts integration credentials through the crypto
// boundary. Decryption happens exactly once per logical request; callers
// hold the result for the lifetime of the call and never persist it.
type Vault struct {
	crypto security.CryptoService
	logger observability.Logger
}

// NewVault creates a vault over the given crypto service
func NewVault(crypto security.CryptoService, logger observability.Logger) *Vault {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Vault{crypto: crypto, logger: logger.WithPrefix("vault")}
}

// Resolve decrypts the integration's credential material according to its
// auth method. Any decrypt failure is reported as a CredentialError; since
// credentials are shared, a batch treats that as failing every operation.
func (v *Vault) Resolve(integration *models.Integration) (*Credentials, error) {
	switch integration.AuthMethod {
	case models.AuthMethodAPIKey:
		token, err := v.decrypt(integration, integration.EncryptedAccessToken, "access token")
		if err != nil {
			return nil, err
		}
		return &Credentials{AccessToken: token}, nil

	case models.AuthMethodBasicAuth:
		// Username is stored in clear; only the password is sealed.
		password, err := v.decrypt(integration, integration.EncryptedPassword, "password")
		if err != nil {
			return nil, err
		}
		return &Credentials{Username: integration.Username, Password: password}, nil

	case models.AuthMethodOAuth2:
		blob, err := v.decrypt(integration, integration.EncryptedOAuthTokens, "oauth tokens")
		if err != nil {
			return nil, err
		}
		tokens := map[string]string{}
		if err := json.Unmarshal([]byte(blob), &tokens); err != nil {
			return nil, &models.CredentialError{
				IntegrationName: integration.Name,
				Err:             fmt.Errorf("malformed oauth token blob: %w", err),
			}
		}
		return &Credentials{AccessToken: tokens["access_token"], OAuthTokens: tokens}, nil

	default:
		return nil, &models.CredentialError{
			IntegrationName: integration.Name,
			Err:             fmt.Errorf("%w: %q", models.ErrUnsupportedAuthMethod, integration.AuthMethod),
		}
	}
}

func (v *Vault) decrypt(integration *models.Integration, ciphertext []byte, what string) (string, error) {
	if len(ciphertext) == 0 {
		return "", &models.CredentialError{
			IntegrationName: integration.Name,
			Err:             fmt.Errorf("no encrypted %s stored", what),
		}
	}
	plaintext, err := v.crypto.Decrypt(ciphertext, integration.OrganizationID)
	if err != nil {
		v.logger.Warn("credential decrypt failed", map[string]interface{}{
			"integration": integration.Name,
			"material":    what,
		})
		return "", &models.CredentialError{IntegrationName: integration.Name, Err: err}
	}
	return plaintext, nil
}

// SealAPIKey encrypts and stores an API key on the integration record
func (v *Vault) SealAPIKey(integration *models.Integration, apiKey string) error {
	ct, err := v.crypto.Encrypt(apiKey, integration.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	integration.AuthMethod = models.AuthMethodAPIKey
	integration.EncryptedAccessToken = ct
	return nil
}

// SealBasicAuth encrypts the password and stores the pair on the record.
// The username is kept in clear per the data model.
func (v *Vault) SealBasicAuth(integration *models.Integration, username, password string) error {
	ct, err := v.crypto.Encrypt(password, integration.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}
	integration.AuthMethod = models.AuthMethodBasicAuth
	integration.Username = username
	integration.EncryptedPassword = ct
	return nil
}

// SealOAuthTokens encrypts an OAuth2 token set on the record
func (v *Vault) SealOAuthTokens(integration *models.Integration, tokens map[string]string) error {
	blob, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth tokens: %w", err)
	}
	ct, err := v.crypto.Encrypt(string(blob), integration.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to encrypt oauth tokens: %w", err)
	}
	integration.AuthMethod = models.AuthMethodOAuth2
	integration.EncryptedOAuthTokens = ct
	return nil
}

// SealValue wraps a workflow-variable secret so it can sit in variable
// storage as ciphertext until the consuming action unwraps it.
func (v *Vault) SealValue(organizationID, plaintext string) (models.SecureValue, error) {
	ct, err := v.crypto.Encrypt(plaintext, organizationID)
	if err != nil {
		return models.SecureValue{}, fmt.Errorf("failed to encrypt secure value: %w", err)
	}
	return models.SecureValue{Encrypted: ct}, nil
}

// OpenValue decrypts a secure-wrapped workflow variable immediately before
// use. Callers must not store the returned plaintext.
func (v *Vault) OpenValue(organizationID string, value models.SecureValue) (string, error) {
	plaintext, err := v.crypto.Decrypt(value.Encrypted, organizationID)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secure value: %w", err)
	}
	return plaintext, nil
}
