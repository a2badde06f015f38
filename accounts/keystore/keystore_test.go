package keystore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNetworkKeyRoundTrips(t *testing.T) {
	kp, err := NewNetworkKey()
	require.NoError(t, err)

	pk, sk, err := kp.Decode()
	require.NoError(t, err)
	assert.NotZero(t, pk)
	assert.NotZero(t, sk)
}

func TestMemberKeyIsDeterministic(t *testing.T) {
	a, err := NewMemberKeyFromPassphrase("alice", "s3cret")
	require.NoError(t, err)
	b, err := NewMemberKeyFromPassphrase("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := NewMemberKeyFromPassphrase("alice", "other")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	network, err := NewNetworkKey()
	require.NoError(t, err)
	member, err := NewMemberKeyFromPassphrase("bob", "hunter2")
	require.NoError(t, err)

	kp := &Keypairs{Member: &member, Network: network}
	require.NoError(t, Save(dir, kp))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, kp.Network, loaded.Network)
	require.NotNil(t, loaded.Member)
	assert.Equal(t, *kp.Member, *loaded.Member)

	// Save must not leave the temp file behind.
	entries, err := filepath.Glob(filepath.Join(dir, ".*"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadWithoutNetworkKeyFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, &Keypairs{}))

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrNoNetworkKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
