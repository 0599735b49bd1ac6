package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"FitPulse_V0.1/internal/coach"
	"FitPulse_V0.1/internal/exercise"
	"FitPulse_V0.1/internal/intent"
	"FitPulse_V0.1/internal/llm"
	"FitPulse_V0.1/internal/memory"
	"FitPulse_V0.1/internal/nutrition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct{ chunks []string }

func (s stubLLM) StreamCompletion(_ context.Context, _ []llm.Message, emit func(string) error) (string, error) {
	var full strings.Builder
	for _, chunk := range s.chunks {
		if err := emit(chunk); err != nil {
			return full.String(), err
		}
		full.WriteString(chunk)
	}
	return full.String(), nil
}

func (s stubLLM) ExtractFoodQuery(_ context.Context, message string) string { return message }

type stubNutrition struct{}

func (stubNutrition) Lookup(context.Context, string) ([]nutrition.FoodNutrient, error) {
	return nil, nutrition.ErrNoFoodFound
}

type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, string) intent.Intent { return intent.IntentGeneral }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := memory.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return &Server{
		port:  0,
		store: store,
		agent: coach.New(stubLLM{chunks: []string{"Hello", " there"}}, stubNutrition{}, stubClassifier{}, exercise.NewCatalog(), store),
	}
}

func TestChatStreamsEventsAndDoneMarker(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.RegisterRoutes()

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"user_id":"alice","message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	var events []chatEvent
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev chatEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}

	require.Len(t, events, 3)
	assert.Equal(t, chatEvent{Content: "Hello", Type: "chunk"}, events[0])
	assert.Equal(t, chatEvent{Content: " there", Type: "chunk"}, events[1])
	assert.Equal(t, chatEvent{Type: "done"}, events[2])
}

func TestChatRequiresMessage(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.RegisterRoutes()

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"user_id":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentInfo(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.RegisterRoutes()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nutrition_tracking")
}

func TestHealthIncludesStore(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.RegisterRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "healthy", payload["status"])

	store, ok := payload["store"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "up", store["status"])
}

func TestProfileUpdateRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.RegisterRoutes()

	req := httptest.NewRequest(http.MethodPut, "/profile/alice",
		strings.NewReader(`{"fitness_level":"advanced","preferences":{"workout_duration":60}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/profile/alice", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var profile memory.UserProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "advanced", profile.FitnessLevel)
	assert.Equal(t, 60, profile.Preferences.WorkoutDuration)
	assert.Equal(t, "bodyweight", profile.Preferences.Equipment)
}
