package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgerrors "github.com/tenantgate/tenantgate/pkg/errors"
	"github.com/tenantgate/tenantgate/pkg/vault/keyring"
)

func testCredentials() TenantCredentials {
	return TenantCredentials{
		RefreshToken: "RT1",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthEndpoint: "https://mc.example.com/v2/token",
	}
}

func TestStoreAndLoadCredentials(t *testing.T) {
	t.Parallel()

	v := New(keyring.NewMemoryProvider())
	require.NoError(t, v.StoreCredentials("acme", testCredentials()))

	creds, err := v.LoadCredentials("acme")
	require.NoError(t, err)
	assert.Equal(t, "RT1", creds.RefreshToken)
	assert.Equal(t, "client-id", creds.ClientID)
	assert.Equal(t, "client-secret", creds.ClientSecret)
	assert.Equal(t, "https://mc.example.com/v2/token", creds.AuthEndpoint)
}

func TestLoadCredentialsMissing(t *testing.T) {
	t.Parallel()

	v := New(keyring.NewMemoryProvider())

	_, err := v.LoadCredentials("unknown")
	require.Error(t, err)
	assert.True(t, tgerrors.IsMissingCredentials(err))
}

func TestLoadCredentialsPartialSetTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	v := New(keyring.NewMemoryProvider())

	// Simulate a torn write: only two of the four keys present.
	require.NoError(t, v.Set("acme", KeyRefreshToken, "RT1"))
	require.NoError(t, v.Set("acme", KeyClientID, "client-id"))

	_, err := v.LoadCredentials("acme")
	require.Error(t, err)
	assert.True(t, tgerrors.IsMissingCredentials(err))
}

func TestStoreCredentialsRejectsPartialSet(t *testing.T) {
	t.Parallel()

	v := New(keyring.NewMemoryProvider())
	creds := testCredentials()
	creds.ClientSecret = ""

	err := v.StoreCredentials("acme", creds)
	require.Error(t, err)
	assert.True(t, tgerrors.IsInvalidArgument(err))
}

func TestRotateRefreshToken(t *testing.T) {
	t.Parallel()

	v := New(keyring.NewMemoryProvider())
	require.NoError(t, v.StoreCredentials("acme", testCredentials()))

	require.NoError(t, v.RotateRefreshToken("acme", "RT2"))

	creds, err := v.LoadCredentials("acme")
	require.NoError(t, err)
	assert.Equal(t, "RT2", creds.RefreshToken, "old refresh token must be overwritten")
}

func TestDeleteCredentials(t *testing.T) {
	t.Parallel()

	v := New(keyring.NewMemoryProvider())
	require.NoError(t, v.StoreCredentials("acme", testCredentials()))

	require.NoError(t, v.DeleteCredentials("acme"))

	_, err := v.LoadCredentials("acme")
	assert.True(t, tgerrors.IsMissingCredentials(err))

	// Deleting again is not an error; absent keys are skipped.
	require.NoError(t, v.DeleteCredentials("acme"))
}

func TestTenantIsolation(t *testing.T) {
	t.Parallel()

	v := New(keyring.NewMemoryProvider())
	require.NoError(t, v.StoreCredentials("acme", testCredentials()))

	other := testCredentials()
	other.RefreshToken = "RT-other"
	require.NoError(t, v.StoreCredentials("globex", other))

	require.NoError(t, v.DeleteCredentials("acme"))

	creds, err := v.LoadCredentials("globex")
	require.NoError(t, err)
	assert.Equal(t, "RT-other", creds.RefreshToken)
}

func TestEmptyTenantName(t *testing.T) {
	t.Parallel()

	v := New(keyring.NewMemoryProvider())

	_, err := v.LoadCredentials("")
	assert.True(t, tgerrors.IsInvalidArgument(err))

	assert.True(t, tgerrors.IsInvalidArgument(v.StoreCredentials("", testCredentials())))
	assert.True(t, tgerrors.IsInvalidArgument(v.DeleteCredentials("")))
}
