package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := miniredis.RunT(t)

		client, err := NewRedis(context.Background(), "redis://"+server.Addr())
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, client.Close())
		}()
	})

	t.Run("Error_InvalidURL", func(t *testing.T) {
		client, err := NewRedis(context.Background(), "http://localhost")
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "failed to parse redis url")
	})

	t.Run("Error_Unreachable", func(t *testing.T) {
		server := miniredis.RunT(t)
		addr := server.Addr()
		server.Close()

		client, err := NewRedis(context.Background(), "redis://"+addr)
		assert.Error(t, err)
		assert.Nil(t, client)
	})
}
