package exercise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanWorkoutWithFocus(t *testing.T) {
	catalog := NewCatalog()

	plan := catalog.PlanWorkout("beginner", 30, "chest")

	assert.Equal(t, "30 minutes", plan.Duration)
	assert.Equal(t, "beginner", plan.Level)
	assert.NotEmpty(t, plan.WarmUp)
	assert.NotEmpty(t, plan.CoolDown)

	require.LessOrEqual(t, len(plan.MainWorkout), 4)
	require.NotEmpty(t, plan.MainWorkout)
	for _, e := range plan.MainWorkout {
		assert.Equal(t, "beginner", e.Difficulty)
	}
}

func TestPlanWorkoutFallsBackWhenNoDifficultyMatch(t *testing.T) {
	catalog := NewCatalog()

	// No "expert" chest exercises exist, so the full chest list is
	// used instead of an empty result.
	plan := catalog.PlanWorkout("expert", 30, "chest")

	require.NotEmpty(t, plan.MainWorkout)
	assert.Equal(t, len(catalog.groups["chest"]), len(plan.MainWorkout))
}

func TestPlanWorkoutWithoutFocusCoversAllGroups(t *testing.T) {
	catalog := NewCatalog()

	plan := catalog.PlanWorkout("beginner", 45, "")

	// One exercise per muscle group in the fixed order.
	require.Len(t, plan.MainWorkout, 5)
	assert.Equal(t, "Push-ups", plan.MainWorkout[0].Name)
	assert.Equal(t, "Bodyweight Squats", plan.MainWorkout[1].Name)
}

func TestPlanWorkoutDeterministic(t *testing.T) {
	catalog := NewCatalog()

	first := catalog.PlanWorkout("intermediate", 60, "legs")
	second := catalog.PlanWorkout("intermediate", 60, "legs")

	assert.Equal(t, first, second)
}

func TestByMuscleUnknownGroup(t *testing.T) {
	catalog := NewCatalog()

	assert.Empty(t, catalog.ByMuscle("shoulders", "beginner"))
}

func TestDetectFocus(t *testing.T) {
	assert.Equal(t, "chest", DetectFocus("I want to build my CHEST today"))
	assert.Equal(t, "legs", DetectFocus("leg day! legs legs legs"))
	assert.Equal(t, "", DetectFocus("I want to get stronger"))
}
