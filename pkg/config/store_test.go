package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Load(t *testing.T) { //nolint:paralleltest // mutates getConfigPath
	t.Run("load with empty path uses default", func(t *testing.T) { //nolint:paralleltest // mutates getConfigPath
		store := NewLocalStore("")

		// Mock the getConfigPath function to return a temporary path
		tempConfig := filepath.Join(t.TempDir(), "config.yaml")
		originalPathGenerator := getConfigPath
		getConfigPath = func() (string, error) {
			return tempConfig, nil
		}
		defer func() { getConfigPath = originalPathGenerator }()

		config, err := store.Load(context.Background())
		require.NoError(t, err)
		require.NotNil(t, config)

		// Should create an empty registry
		assert.Empty(t, config.Tenants)
	})
}

func TestLocalStore_Exists(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	store := NewLocalStore(configPath)
	ctx := context.Background()

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Load(ctx)
	require.NoError(t, err)

	exists, err = store.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalStore_UpdatePersists(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	store := NewLocalStore(configPath)
	ctx := context.Background()

	err := store.Update(ctx, func(c *Config) {
		c.Server.Address = "127.0.0.1:9080"
	})
	require.NoError(t, err)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9080", loaded.Server.Address)
}
