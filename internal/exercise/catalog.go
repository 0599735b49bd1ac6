/*
Package exercise holds the static exercise catalog and builds
deterministic workout plans from it. The catalog is loaded once at
process start and never mutated.
*/
package exercise

import (
	"fmt"
	"strings"
)

// Exercise is one catalog entry.
type Exercise struct {
	Name         string `json:"name"`
	Equipment    string `json:"equipment"`
	Difficulty   string `json:"difficulty"`
	Instructions string `json:"instructions"`
	Reps         string `json:"reps"`
}

// WorkoutPlan is a complete session: fixed warm-up and cool-down
// around a main block of at most four exercises.
type WorkoutPlan struct {
	Duration    string     `json:"duration"`
	Level       string     `json:"level"`
	WarmUp      []string   `json:"warm_up"`
	MainWorkout []Exercise `json:"main_workout"`
	CoolDown    []string   `json:"cool_down"`
}

// mainWorkoutLimit caps the main block of a focused plan.
const mainWorkoutLimit = 4

// muscleOrder is the fixed iteration order for full-body plans.
var muscleOrder = []string{"chest", "legs", "back", "arms", "core"}

// focusVocabulary is scanned against user messages to detect an
// optional muscle-group focus.
var focusVocabulary = []string{"chest", "legs", "back", "arms", "core", "shoulders", "abs", "cardio"}

// DetectFocus returns the first muscle-group word found in the
// message, or the empty string when none matches.
func DetectFocus(message string) string {
	lower := strings.ToLower(message)
	for _, muscle := range focusVocabulary {
		if strings.Contains(lower, muscle) {
			return muscle
		}
	}
	return ""
}

// Catalog maps muscle groups to ordered exercise lists.
type Catalog struct {
	groups map[string][]Exercise
}

// NewCatalog returns the built-in catalog.
func NewCatalog() *Catalog {
	return &Catalog{groups: map[string][]Exercise{
		"chest": {
			{
				Name:         "Push-ups",
				Equipment:    "bodyweight",
				Difficulty:   "beginner",
				Instructions: "Start in plank position, lower body until chest nearly touches floor, push back up",
				Reps:         "3 sets of 10-15 reps",
			},
			{
				Name:         "Bench Press",
				Equipment:    "barbell",
				Difficulty:   "intermediate",
				Instructions: "Lie on bench, lower bar to chest, press up until arms extended",
				Reps:         "3 sets of 8-12 reps",
			},
			{
				Name:         "Dumbbell Flyes",
				Equipment:    "dumbbells",
				Difficulty:   "intermediate",
				Instructions: "Lie on bench with dumbbells above chest, lower arms out to sides, bring back up",
				Reps:         "3 sets of 10-12 reps",
			},
		},
		"legs": {
			{
				Name:         "Bodyweight Squats",
				Equipment:    "bodyweight",
				Difficulty:   "beginner",
				Instructions: "Stand with feet shoulder-width, lower hips back and down, stand back up",
				Reps:         "3 sets of 15-20 reps",
			},
			{
				Name:         "Lunges",
				Equipment:    "bodyweight",
				Difficulty:   "beginner",
				Instructions: "Step forward, lower back knee toward ground, push back to start",
				Reps:         "3 sets of 10 reps per leg",
			},
			{
				Name:         "Barbell Squats",
				Equipment:    "barbell",
				Difficulty:   "intermediate",
				Instructions: "Bar on upper back, squat down until thighs parallel, drive up through heels",
				Reps:         "3 sets of 8-12 reps",
			},
		},
		"back": {
			{
				Name:         "Pull-ups",
				Equipment:    "pull-up bar",
				Difficulty:   "intermediate",
				Instructions: "Hang from bar, pull body up until chin over bar, lower with control",
				Reps:         "3 sets of 5-10 reps",
			},
			{
				Name:         "Bent-over Rows",
				Equipment:    "barbell",
				Difficulty:   "intermediate",
				Instructions: "Bend at hips with bar hanging, pull bar to lower chest, lower with control",
				Reps:         "3 sets of 8-12 reps",
			},
		},
		"arms": {
			{
				Name:         "Bicep Curls",
				Equipment:    "dumbbells",
				Difficulty:   "beginner",
				Instructions: "Hold dumbbells at sides, curl up to shoulders, lower with control",
				Reps:         "3 sets of 10-15 reps",
			},
			{
				Name:         "Tricep Dips",
				Equipment:    "parallel bars",
				Difficulty:   "beginner",
				Instructions: "Support body on bars, lower until elbows at 90 degrees, push back up",
				Reps:         "3 sets of 8-12 reps",
			},
		},
		"core": {
			{
				Name:         "Planks",
				Equipment:    "bodyweight",
				Difficulty:   "beginner",
				Instructions: "Hold push-up position on forearms, keep body straight",
				Reps:         "3 sets of 30-60 seconds",
			},
			{
				Name:         "Crunches",
				Equipment:    "bodyweight",
				Difficulty:   "beginner",
				Instructions: "Lie on back with knees bent, lift shoulders off ground, lower with control",
				Reps:         "3 sets of 15-20 reps",
			},
		},
	}}
}

// ByMuscle returns the exercises for a muscle group filtered by exact
// difficulty. When the filter leaves nothing, the full unfiltered list
// for that group is returned instead of an empty result.
func (c *Catalog) ByMuscle(muscleGroup, difficulty string) []Exercise {
	exercises := c.groups[strings.ToLower(muscleGroup)]

	var filtered []Exercise
	for _, e := range exercises {
		if e.Difficulty == strings.ToLower(difficulty) {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) > 0 {
		return filtered
	}
	return exercises
}

// PlanWorkout builds a plan for the given level and duration. With a
// focus it takes up to four exercises from that muscle group; without
// one it takes the first match per group in the fixed order.
func (c *Catalog) PlanWorkout(level string, durationMinutes int, focus string) WorkoutPlan {
	plan := WorkoutPlan{
		Duration: fmt.Sprintf("%d minutes", durationMinutes),
		Level:    level,
		WarmUp: []string{
			"5 minutes light cardio (jogging, jumping jacks)",
			"Dynamic stretching (leg swings, arm circles)",
			"Joint mobility exercises",
		},
		MainWorkout: []Exercise{},
		CoolDown: []string{
			"5 minutes light cardio (walking)",
			"Static stretching - hold each stretch 30 seconds",
			"Deep breathing exercises",
		},
	}

	if focus != "" {
		exercises := c.ByMuscle(focus, level)
		if len(exercises) > mainWorkoutLimit {
			exercises = exercises[:mainWorkoutLimit]
		}
		plan.MainWorkout = append(plan.MainWorkout, exercises...)
		return plan
	}

	for _, muscle := range muscleOrder {
		if exercises := c.ByMuscle(muscle, level); len(exercises) > 0 {
			plan.MainWorkout = append(plan.MainWorkout, exercises[0])
		}
	}
	return plan
}
