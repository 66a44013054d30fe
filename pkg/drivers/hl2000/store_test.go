package hl2000

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestStoreSeedsDefaults(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "panel.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	store, err := NewStore(db)
	require.NoError(t, err)

	cfg, err := store.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestStoreRoundTrip(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "panel.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	store, err := NewStore(db)
	require.NoError(t, err)

	custom := DefaultConfig()
	custom.Serial.BaudRate = 19200
	custom.Serial.ReadTerminator = "\r"
	custom.SettleDelay = 250 * time.Millisecond
	custom.CalibrateOnConnect = true
	require.NoError(t, store.SetConfig(custom))

	loaded, err := store.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, custom, loaded)
}
