package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestGetSetting_Missing(t *testing.T) {
	database := openTestDB(t)

	value, err := database.GetSetting("nope")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestSetSetting_Overwrites(t *testing.T) {
	database := openTestDB(t)

	require.NoError(t, database.SetSetting(KeyUserID, "1"))
	require.NoError(t, database.SetSetting(KeyUserID, "2"))

	value, err := database.GetSetting(KeyUserID)
	require.NoError(t, err)
	assert.Equal(t, "2", value)
}

func TestSetSettingsAndDelete(t *testing.T) {
	database := openTestDB(t)

	require.NoError(t, database.SetSettings(map[string]string{
		KeyUserID:    "7",
		KeyAuthToken: "tok",
		KeyUserEmail: "a@b.c",
	}))
	require.NoError(t, database.SetSetting(KeyLastProjectID, "3"))

	require.NoError(t, database.DeleteSettings(KeyUserID, KeyAuthToken, KeyUserEmail))

	for _, key := range []string{KeyUserID, KeyAuthToken, KeyUserEmail} {
		value, err := database.GetSetting(key)
		require.NoError(t, err)
		assert.Empty(t, value, key)
	}

	value, err := database.GetSetting(KeyLastProjectID)
	require.NoError(t, err)
	assert.Equal(t, "3", value)
}

func TestNew_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	database, err := New(dir)
	require.NoError(t, err)
	defer database.Close()

	assert.FileExists(t, filepath.Join(dir, "taskboard.db"))
}

func TestSettingsVisibleAcrossConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	first, err := Open(path)
	require.NoError(t, err)
	defer first.Close()
	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.SetSetting(KeyUserID, "42"))
	value, err := second.GetSetting(KeyUserID)
	require.NoError(t, err)
	assert.Equal(t, "42", value)

	require.NoError(t, first.DeleteSettings(KeyUserID))
	value, err = second.GetSetting(KeyUserID)
	require.NoError(t, err)
	assert.Empty(t, value)
}
