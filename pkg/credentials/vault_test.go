package credentials

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackflow-io/stackflow/pkg/models"
	"github.com/stackflow-io/stackflow/pkg/security"
)

func newTestVault() *Vault {
	return NewVault(security.NewEncryptionService("unit-test-master-key"), nil)
}

func TestVaultResolve(t *testing.T) {
	vault := newTestVault()

	t.Run("APIKey", func(t *testing.T) {
		in := &models.Integration{OrganizationID: "org-1", Name: "shopify"}
		require.NoError(t, vault.SealAPIKey(in, "shpat_12345"))

		creds, err := vault.Resolve(in)
		require.NoError(t, err)
		assert.Equal(t, "shpat_12345", creds.AccessToken)
		assert.Empty(t, creds.Username)
	})

	t.Run("BasicAuth", func(t *testing.T) {
		in := &models.Integration{OrganizationID: "org-1", Name: "protel"}
		require.NoError(t, vault.SealBasicAuth(in, "reporting", "s3cret"))

		assert.Equal(t, "reporting", in.Username, "username stays in clear")
		assert.NotContains(t, string(in.EncryptedPassword), "s3cret")

		creds, err := vault.Resolve(in)
		require.NoError(t, err)
		assert.Equal(t, "reporting", creds.Username)
		assert.Equal(t, "s3cret", creds.Password)
	})

	t.Run("OAuth2", func(t *testing.T) {
		in := &models.Integration{OrganizationID: "org-1", Name: "hubspot"}
		require.NoError(t, vault.SealOAuthTokens(in, map[string]string{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
		}))

		creds, err := vault.Resolve(in)
		require.NoError(t, err)
		assert.Equal(t, "at-1", creds.AccessToken)
		assert.Equal(t, "rt-1", creds.OAuthTokens["refresh_token"])
	})

	t.Run("WrongOrganizationFailsWithCredentialError", func(t *testing.T) {
		in := &models.Integration{OrganizationID: "org-1", Name: "shopify"}
		require.NoError(t, vault.SealAPIKey(in, "shpat_12345"))

		in.OrganizationID = "org-2"
		_, err := vault.Resolve(in)

		var credErr *models.CredentialError
		require.True(t, errors.As(err, &credErr))
		assert.Equal(t, "shopify", credErr.IntegrationName)
	})

	t.Run("MissingMaterialFailsWithCredentialError", func(t *testing.T) {
		in := &models.Integration{
			OrganizationID: "org-1",
			Name:           "empty",
			AuthMethod:     models.AuthMethodAPIKey,
		}
		_, err := vault.Resolve(in)

		var credErr *models.CredentialError
		assert.True(t, errors.As(err, &credErr))
	})

	t.Run("UnsupportedAuthMethod", func(t *testing.T) {
		in := &models.Integration{
			OrganizationID: "org-1",
			Name:           "odd",
			AuthMethod:     "kerberos",
		}
		_, err := vault.Resolve(in)
		assert.ErrorIs(t, err, models.ErrUnsupportedAuthMethod)
	})
}

func TestSecretsMap(t *testing.T) {
	t.Run("APIKeyShape", func(t *testing.T) {
		creds := &Credentials{AccessToken: "tok"}
		secrets := creds.SecretsMap("acme.myshopify.com")
		assert.Equal(t, map[string]string{
			"accessToken": "tok",
			"domain":      "acme.myshopify.com",
		}, secrets)
	})

	t.Run("BasicAuthShape", func(t *testing.T) {
		creds := &Credentials{Username: "u", Password: "p"}
		secrets := creds.SecretsMap("")
		assert.Equal(t, map[string]string{"username": "u", "password": "p"}, secrets)
	})
}

func TestSecureValueRoundTrip(t *testing.T) {
	vault := newTestVault()

	sealed, err := vault.SealValue("org-1", "api-secret")
	require.NoError(t, err)

	// The JSON form carries the marker and no plaintext
	data, err := sealed.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"__secure":true`)
	assert.NotContains(t, string(data), "api-secret")

	plaintext, err := vault.OpenValue("org-1", sealed)
	require.NoError(t, err)
	assert.Equal(t, "api-secret", plaintext)

	_, err = vault.OpenValue("org-2", sealed)
	assert.Error(t, err)
}
