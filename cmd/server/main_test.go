package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/fanwars-backend/internal/auth"
	"github.com/DoyleJ11/fanwars-backend/internal/config"
	"github.com/DoyleJ11/fanwars-backend/internal/store"
)

func TestOpenBackend(t *testing.T) {
	tokens := auth.NewService("test-secret", time.Hour)
	logger := zaptest.NewLogger(t)

	t.Run("production without a database", func(t *testing.T) {
		cfg := &config.Config{}
		db, _, err := openBackend(context.Background(), cfg, false, tokens, logger)
		require.ErrorIs(t, err, errNoDatabase)
		assert.Nil(t, db)
	})

	t.Run("dev seeds memory", func(t *testing.T) {
		cfg := &config.Config{Server: config.ServerConfig{AdvertiseAddr: "ws://dev"}}
		db, closeDB, err := openBackend(context.Background(), cfg, true, tokens, logger)
		require.NoError(t, err)
		defer closeDB()

		mem, ok := db.(*store.Memory)
		require.True(t, ok)
		r, ok := mem.Room("1")
		require.True(t, ok)
		assert.Equal(t, "ws://dev", r.MatchServerURL)
		_, ok = mem.User("dev-1")
		assert.True(t, ok)
	})
}
