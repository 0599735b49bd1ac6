package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestGetContextDefaultsForUnknownUser(t *testing.T) {
	store := newTestStore(t)

	profile := store.GetContext(context.Background(), "newcomer")

	assert.Equal(t, "newcomer", profile.UserID)
	assert.Equal(t, "beginner", profile.FitnessLevel)
	assert.Equal(t, 30, profile.Preferences.WorkoutDuration)
	assert.Equal(t, 3, profile.Preferences.WorkoutFrequency)
	assert.Equal(t, "bodyweight", profile.Preferences.Equipment)
	assert.Empty(t, profile.History)
}

func TestSaveInteractionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	metadata := map[string]any{"tools_used": true, "intent": "nutrition"}
	require.NoError(t, store.SaveInteraction(ctx, "alice", "3 eggs?", "About 233 kcal.", metadata))

	profile := store.GetContext(ctx, "alice")
	require.Len(t, profile.History, 1)

	last := profile.History[0]
	assert.Equal(t, "3 eggs?", last.Query)
	assert.Equal(t, "About 233 kcal.", last.Response)
	assert.Equal(t, true, last.Metadata["tools_used"])
	assert.Equal(t, "nutrition", last.Metadata["intent"])
	assert.False(t, last.Timestamp.IsZero())
}

func TestSaveInteractionSurvivesColdCache(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.SaveInteraction(ctx, "bob", "hi", "hello!", nil))
	first.Close()

	// A fresh store over the same directory must read the same data.
	second, err := NewFileStore(dir)
	require.NoError(t, err)
	defer second.Close()

	profile := second.GetContext(ctx, "bob")
	require.Len(t, profile.History, 1)
	assert.Equal(t, "hi", profile.History[0].Query)
}

func TestHistoryCappedAtLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		require.NoError(t, store.SaveInteraction(ctx, "carol", fmt.Sprintf("q%d", i), fmt.Sprintf("r%d", i), nil))
	}

	profile := store.GetContext(ctx, "carol")
	require.Len(t, profile.History, HistoryLimit)

	// The 50 most recent entries, oldest first.
	assert.Equal(t, "q10", profile.History[0].Query)
	assert.Equal(t, "q59", profile.History[HistoryLimit-1].Query)
}

func TestUpdateProfileMerges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	level := "intermediate"
	duration := 45
	require.NoError(t, store.UpdateProfile(ctx, "dave", ProfileUpdate{
		FitnessLevel: &level,
		Goals:        []string{"build muscle"},
		Preferences:  &PreferencesUpdate{WorkoutDuration: &duration},
	}))

	profile := store.GetContext(ctx, "dave")
	assert.Equal(t, "intermediate", profile.FitnessLevel)
	assert.Equal(t, []string{"build muscle"}, profile.Goals)
	assert.Equal(t, 45, profile.Preferences.WorkoutDuration)
	// Untouched preference fields keep their defaults.
	assert.Equal(t, "bodyweight", profile.Preferences.Equipment)
	assert.False(t, profile.UpdatedAt.IsZero())
}

func TestUserIDSanitization(t *testing.T) {
	assert.Equal(t, "anonymous", SanitizeUserID(""))
	assert.Equal(t, "anonymous", SanitizeUserID(".."))
	assert.Equal(t, ".._.._etc_passwd", SanitizeUserID("../../etc/passwd"))
	assert.Equal(t, "user_42", SanitizeUserID("user 42"))
}

func TestSanitizedIDsStayInsideDataDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveInteraction(context.Background(), "../../escape", "q", "r", nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(entries[0].Name()), entries[0].Name())
}

func TestDistinctUsersDoNotInterfere(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveInteraction(ctx, "erin", "erin q", "erin r", nil))
	require.NoError(t, store.SaveInteraction(ctx, "frank", "frank q", "frank r", nil))

	erin := store.GetContext(ctx, "erin")
	frank := store.GetContext(ctx, "frank")

	require.Len(t, erin.History, 1)
	require.Len(t, frank.History, 1)
	assert.Equal(t, "erin q", erin.History[0].Query)
	assert.Equal(t, "frank q", frank.History[0].Query)
}

func TestFileStoreHealth(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveInteraction(context.Background(), "gina", "q", "r", nil))

	health := store.Health()
	assert.Equal(t, "up", health["status"])
	assert.Equal(t, "file", health["backend"])
	assert.Equal(t, "1", health["profiles"])
}
