/*
Package coach implements the message-processing pipeline: classify the
message, gather tool data, assemble the completion request, stream the
reply chunk by chunk and persist the interaction.

Failures never escape ProcessMessage. Every external call degrades at
its own boundary; anything that still slips through is converted into
one generic technical-difficulty chunk.
*/
package coach

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"FitPulse_V0.1/internal/exercise"
	"FitPulse_V0.1/internal/intent"
	"FitPulse_V0.1/internal/llm"
	"FitPulse_V0.1/internal/memory"
	"FitPulse_V0.1/internal/nutrition"
	"github.com/rs/zerolog/log"
)

// historyReplay is how many prior interactions are replayed into the
// completion request.
const historyReplay = 3

// compoundJoiners mark a nutrition query naming multiple foods.
var compoundJoiners = []string{" and ", " with ", ", ", " plus "}

// CompletionClient is the completion-service dependency.
type CompletionClient interface {
	StreamCompletion(ctx context.Context, messages []llm.Message, emit func(chunk string) error) (string, error)
	ExtractFoodQuery(ctx context.Context, message string) string
}

// NutritionClient is the nutrition-lookup dependency.
type NutritionClient interface {
	Lookup(ctx context.Context, query string) ([]nutrition.FoodNutrient, error)
}

// Classifier routes a message to exactly one intent.
type Classifier interface {
	Classify(ctx context.Context, message string) intent.Intent
}

// Agent is the coaching orchestrator.
type Agent struct {
	name       string
	llm        CompletionClient
	nutrition  NutritionClient
	classifier Classifier
	catalog    *exercise.Catalog
	store      memory.Store
}

// New wires the orchestrator. The agent name comes from AGENT_NAME,
// defaulting to "Fitness Coach".
func New(completion CompletionClient, nutritionClient NutritionClient, classifier Classifier, catalog *exercise.Catalog, store memory.Store) *Agent {
	name := os.Getenv("AGENT_NAME")
	if name == "" {
		name = "Fitness Coach"
	}

	agent := &Agent{
		name:       name,
		llm:        completion,
		nutrition:  nutritionClient,
		classifier: classifier,
		catalog:    catalog,
		store:      store,
	}
	log.Info().Str("agent", name).Msg("Coaching agent initialized")
	return agent
}

// Name returns the configured agent name.
func (a *Agent) Name() string { return a.name }

// abandonedError marks an emit failure: the consumer is gone, so the
// stream is abandoned silently instead of apologized for.
type abandonedError struct{ err error }

func (e *abandonedError) Error() string { return "stream abandoned: " + e.err.Error() }
func (e *abandonedError) Unwrap() error { return e.err }

// ProcessMessage runs one user turn: each produced text chunk is
// handed to emit in order, ending after the last chunk. It never
// returns an error; a failing pipeline emits a generic apology chunk,
// and an emit failure or cancelled context abandons the turn quietly.
func (a *Agent) ProcessMessage(ctx context.Context, userID, message string, emit func(chunk string) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("user_id", userID).Msg("Message pipeline panicked")
			_ = emit(technicalDifficulties)
		}
	}()

	send := func(chunk string) error {
		if err := emit(chunk); err != nil {
			return &abandonedError{err: err}
		}
		return nil
	}

	err := a.process(ctx, userID, message, send)
	if err == nil {
		return
	}

	var abandoned *abandonedError
	if errors.As(err, &abandoned) || errors.Is(err, context.Canceled) {
		log.Info().Str("user_id", userID).Msg("Caller disconnected mid-stream, turn abandoned")
		return
	}

	log.Error().Err(err).Str("user_id", userID).Msg("Message pipeline failed")
	_ = emit(technicalDifficulties)
}

// logPreview shortens a message for log lines without splitting a rune.
func logPreview(message string) string {
	if len(message) <= 50 {
		return message
	}
	return strings.ToValidUTF8(message[:50], "")
}

func (a *Agent) process(ctx context.Context, userID, message string, send func(string) error) error {
	log.Info().Str("user_id", userID).Str("message", logPreview(message)).Msg("Processing message")

	// 1. Profile never fails; unknown users get a default.
	profile := a.store.GetContext(ctx, userID)

	// 2. Classify.
	detected := a.classifier.Classify(ctx, message)
	log.Info().Str("user_id", userID).Str("intent", string(detected)).Msg("Intent classified")

	// 3. Gather tool data for the detected intent.
	var toolBlocks []string

	switch detected {
	case intent.IntentNutrition:
		block, err := a.gatherNutrition(ctx, message, send)
		if err != nil {
			return err
		}
		if block != "" {
			toolBlocks = append(toolBlocks, block)
		}

	case intent.IntentWorkout:
		toolBlocks = append(toolBlocks, a.gatherWorkout(message, profile))
	}

	// 4. Assemble the completion request.
	messages := a.buildMessages(profile, detected, toolBlocks, message)

	// 5. Stream the reply, forwarding every chunk as it arrives.
	full, err := a.llm.StreamCompletion(ctx, messages, send)
	if err != nil {
		return err
	}

	// 6. Persist the interaction. A failed save is logged, not shown:
	// the user already has their full reply.
	metadata := map[string]any{
		"tools_used": len(toolBlocks) > 0,
		"intent":     string(detected),
	}
	if err := a.store.SaveInteraction(ctx, userID, message, full, metadata); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to persist interaction")
	}

	log.Info().Str("user_id", userID).Msg("Successfully processed message")
	return nil
}

// gatherNutrition runs the nutrition branch: compound-query advisory,
// food-query extraction, lookup and data-block formatting. A failed
// lookup degrades: compound queries get an apology chunk, simple ones
// continue silently to a general completion.
func (a *Agent) gatherNutrition(ctx context.Context, message string, send func(string) error) (string, error) {
	lower := strings.ToLower(message)

	compound := false
	for _, joiner := range compoundJoiners {
		if strings.Contains(lower, joiner) {
			compound = true
			break
		}
	}

	if compound {
		if err := send(compoundQueryTip); err != nil {
			return "", err
		}
	}

	foodQuery := a.llm.ExtractFoodQuery(ctx, message)
	log.Info().Str("food_query", foodQuery).Msg("Running nutrition lookup")

	foods, err := a.nutrition.Lookup(ctx, foodQuery)
	if err != nil {
		log.Warn().Err(err).Str("food_query", foodQuery).Msg("Nutrition lookup failed")
		if compound {
			if err := send(compoundQueryApology); err != nil {
				return "", err
			}
		}
		return "", nil
	}

	return formatNutritionBlock(foods), nil
}

// gatherWorkout derives level and duration from the profile, detects
// an optional muscle-group focus and stages the serialized plan.
func (a *Agent) gatherWorkout(message string, profile *memory.UserProfile) string {
	focus := exercise.DetectFocus(message)
	plan := a.catalog.PlanWorkout(profile.FitnessLevel, profile.Preferences.WorkoutDuration, focus)

	serialized, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		// The plan is plain data; this cannot realistically fail.
		log.Error().Err(err).Msg("Failed to serialize workout plan")
		return ""
	}
	return formatWorkoutBlock(string(serialized))
}

// buildMessages assembles the completion request: persona system
// prompt, profile summary, the staged tool data marked as system data,
// the most recent interactions replayed as alternating turns, and the
// current message.
func (a *Agent) buildMessages(profile *memory.UserProfile, detected intent.Intent, toolBlocks []string, message string) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(a.name, detected)},
		{Role: llm.RoleSystem, Content: profileSummary(profile.FitnessLevel, profile.Goals, profile.Restrictions, len(profile.History))},
	}

	if len(toolBlocks) > 0 {
		// Tool data rides in a user-role message, not a third system one.
		messages = append(messages, llm.Message{
			Role:    llm.RoleUser,
			Content: "[SYSTEM DATA - USE THESE EXACT NUMBERS]\n\n" + strings.Join(toolBlocks, "\n\n"),
		})
	}

	history := profile.History
	if len(history) > historyReplay {
		history = history[len(history)-historyReplay:]
	}
	for _, interaction := range history {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: interaction.Query},
			llm.Message{Role: llm.RoleAssistant, Content: interaction.Response},
		)
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: message})
}
