package intent

import (
	"context"
	"errors"
	"testing"

	"FitPulse_V0.1/internal/llm"
	"github.com/stretchr/testify/assert"
)

type fakeCompleter struct {
	reply  string
	err    error
	called bool
}

func (f *fakeCompleter) Complete(_ context.Context, _ []llm.Message, _ int, _ float64) (string, error) {
	f.called = true
	return f.reply, f.err
}

func TestClassifyWorkoutKeywordsWin(t *testing.T) {
	completer := &fakeCompleter{reply: "yes"}
	classifier := NewClassifier(completer)

	cases := []string{
		"I need a workout for my chest",
		"What exercise should I do today?",
		"Help me with my training routine",
		"Going to the gym, any tips?",
		// Workout keywords win even when nutrition words are present.
		"How many calories does a workout burn?",
	}
	for _, message := range cases {
		assert.Equal(t, IntentWorkout, classifier.Classify(context.Background(), message), message)
	}
	assert.False(t, completer.called, "keyword rules must not hit the network")
}

func TestClassifyDietPlanPhrases(t *testing.T) {
	classifier := NewClassifier(&fakeCompleter{})

	cases := []string{
		"Can you make me a diet plan?",
		"I want a meal plan for the week",
		"Give me a plan to eat better",
	}
	for _, message := range cases {
		assert.Equal(t, IntentDietPlan, classifier.Classify(context.Background(), message), message)
	}
}

func TestClassifyNutritionDelegatesToSubClassifier(t *testing.T) {
	completer := &fakeCompleter{reply: "Yes."}
	classifier := NewClassifier(completer)

	got := classifier.Classify(context.Background(), "calories in pizza")

	assert.True(t, completer.called)
	assert.Equal(t, IntentNutrition, got)
}

func TestClassifyNumericTokenDelegates(t *testing.T) {
	completer := &fakeCompleter{reply: "no"}
	classifier := NewClassifier(completer)

	got := classifier.Classify(context.Background(), "what about 3 eggs")

	assert.True(t, completer.called)
	assert.Equal(t, IntentDietPlan, got)
}

func TestClassifySubClassifierFailureFallsBack(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("connection refused")}
	classifier := NewClassifier(completer)

	assert.NotPanics(t, func() {
		got := classifier.Classify(context.Background(), "how many calories should I eat")
		assert.Equal(t, IntentDietPlan, got)
	})
}

func TestClassifyGeneralFallthrough(t *testing.T) {
	completer := &fakeCompleter{}
	classifier := NewClassifier(completer)

	got := classifier.Classify(context.Background(), "hello there, how are you?")

	assert.Equal(t, IntentGeneral, got)
	assert.False(t, completer.called)
}
